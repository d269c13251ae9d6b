// Package host defines the blocking primitives a service application uses to
// reach its host. Every primitive either returns a value or aborts the
// execution by panicking with an *abort.Abort; none return errors.
package host

import (
	"github.com/roach88/svcrt/internal/base"
)

// Primitive names a host primitive. Names are stable and appear in traces,
// metrics and scenario assertions.
type Primitive string

const (
	PrimFetchParameters          Primitive = "fetch_parameters"
	PrimFetchApplicationID       Primitive = "fetch_application_id"
	PrimFetchChainID             Primitive = "fetch_chain_id"
	PrimFetchBlockHeight         Primitive = "fetch_block_height"
	PrimFetchTimestamp           Primitive = "fetch_timestamp"
	PrimFetchChainBalance        Primitive = "fetch_chain_balance"
	PrimFetchOwnerBalance        Primitive = "fetch_owner_balance"
	PrimFetchAllOwnerBalances    Primitive = "fetch_all_owner_balances"
	PrimFetchBalanceOwners       Primitive = "fetch_balance_owners"
	PrimPerformHTTPRequest       Primitive = "perform_http_request"
	PrimReadDataBlob             Primitive = "read_data_blob"
	PrimAssertDataBlobExists     Primitive = "assert_data_blob_exists"
	PrimScheduleOperation        Primitive = "schedule_operation"
	PrimDispatchApplicationQuery Primitive = "dispatch_application_query"
	PrimContainsKey              Primitive = "contains_key"
	PrimReadValueBytes           Primitive = "read_value_bytes"
	PrimFindKeysByPrefix         Primitive = "find_keys_by_prefix"
	PrimFindKeyValuesByPrefix    Primitive = "find_key_values_by_prefix"
)

// Primitives lists every primitive in declaration order.
var Primitives = []Primitive{
	PrimFetchParameters,
	PrimFetchApplicationID,
	PrimFetchChainID,
	PrimFetchBlockHeight,
	PrimFetchTimestamp,
	PrimFetchChainBalance,
	PrimFetchOwnerBalance,
	PrimFetchAllOwnerBalances,
	PrimFetchBalanceOwners,
	PrimPerformHTTPRequest,
	PrimReadDataBlob,
	PrimAssertDataBlobExists,
	PrimScheduleOperation,
	PrimDispatchApplicationQuery,
	PrimContainsKey,
	PrimReadValueBytes,
	PrimFindKeysByPrefix,
	PrimFindKeyValuesByPrefix,
}

// IsValid reports whether p names a known primitive.
func (p Primitive) IsValid() bool {
	for _, known := range Primitives {
		if p == known {
			return true
		}
	}
	return false
}

// RawOwner is an account owner in its wire form (variant tag + payload).
type RawOwner []byte

// RawOwnerBalance is one ledger entry as the host returns it.
type RawOwnerBalance struct {
	Owner   RawOwner
	Balance base.Amount
}

// RawHTTPResponse is an oracle response before it is wrapped in the
// response envelope.
type RawHTTPResponse struct {
	Status  uint16
	Headers []base.HTTPHeader
	Body    []byte
}

// KeyValue is one storage entry.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Storage is the read-only key-value surface of the host.
//
// The prefix searches return entries in ascending key order, with the prefix
// stripped from each returned key.
type Storage interface {
	ContainsKey(key []byte) bool
	ReadValueBytes(key []byte) ([]byte, bool)
	FindKeysByPrefix(prefix []byte) [][]byte
	FindKeyValuesByPrefix(prefix []byte) []KeyValue
}

// Host is the full primitive set available to a query execution.
type Host interface {
	Storage

	FetchParameters() []byte
	FetchApplicationID() base.ApplicationID
	FetchChainID() base.ChainID
	FetchBlockHeight() base.BlockHeight
	FetchTimestamp() base.Timestamp
	FetchChainBalance() base.Amount
	FetchOwnerBalance(owner base.AccountOwner) base.Amount
	FetchAllOwnerBalances() []RawOwnerBalance
	FetchBalanceOwners() []RawOwner

	PerformHTTPRequest(req base.HTTPRequest) RawHTTPResponse
	ReadDataBlob(hash base.DataBlobHash) []byte
	AssertDataBlobExists(hash base.DataBlobHash)

	// ScheduleOperation appends an encoded operation to the host queue.
	ScheduleOperation(payload []byte)

	// DispatchApplicationQuery runs query against the target application and
	// returns its serialized response.
	DispatchApplicationQuery(app base.ApplicationID, query []byte) []byte
}
