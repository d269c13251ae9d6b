// Package abort implements the fatal-condition plumbing shared by the runtime
// facade, the memoizing cells and the cross-application query protocol.
//
// A query execution never degrades: malformed exchanges, missing blobs and
// recursive fact fetching terminate the execution immediately. Inside the
// facade this is expressed as a panic carrying an *Abort, mirroring a trap in
// the sandboxed module. The execution boundary (the host entry point, the test
// harness) converts that panic back into an error with Run.
//
// Codes:
//   - ENCODING_FAILED: a value could not be serialized before a host call
//   - DECODING_FAILED: a host or cross-application reply did not parse
//   - BLOB_MISSING: the host reported a required data blob as absent
//   - REENTRANT_FETCH: a memoizing cell was re-entered while being populated
//   - HOST_ABORT: the host terminated the execution (quota, cycle, schema)
package abort
