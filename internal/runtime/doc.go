// Package runtime is the query-side runtime handed to a service application.
//
// A Runtime wraps the host primitives for the lifetime of one query
// execution. Facts that cannot change during a query (parameters, ids,
// block height, timestamp, balances) are fetched from the host on first use
// and served from a per-execution cache afterwards. Everything else,
// including single-owner balance lookups, oracle calls and blob reads, goes
// to the host every time.
//
// Fatal conditions do not surface as error returns. They abort the
// execution by panicking with an *abort.Abort, which the caller converts
// back to an error at the execution boundary with abort.Run:
//
//	err := abort.Run(func() {
//		rt := runtime.New[Params, CounterAbi](h)
//		answer = handleQuery(rt, query)
//	})
//
// Cross-application queries go through QueryApplication, which serializes
// the typed query, dispatches it through the host and decodes the typed
// response.
//
// A Runtime is owned by one execution and must not be shared across
// goroutines or reused for another query.
package runtime
