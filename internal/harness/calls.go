package harness

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/svcrt/internal/abi"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/runtime"
)

// Facade calls a scenario step may make.
const (
	CallParameters           = "parameters"
	CallApplicationID        = "application_id"
	CallChainID              = "chain_id"
	CallNextBlockHeight      = "next_block_height"
	CallSystemTime           = "system_time"
	CallChainBalance         = "chain_balance"
	CallOwnerBalance         = "owner_balance"
	CallOwnerBalances        = "owner_balances"
	CallBalanceOwners        = "balance_owners"
	CallHTTPRequest          = "http_request"
	CallReadDataBlob         = "read_data_blob"
	CallAssertDataBlobExists = "assert_data_blob_exists"
	CallScheduleOperation    = "schedule_operation"
	CallQueryApplication     = "query_application"
	CallContainsKey          = "contains_key"
	CallReadValue            = "read_value"
	CallFindKeysByPrefix     = "find_keys_by_prefix"
)

// Calls lists every facade call in declaration order.
var Calls = []string{
	CallParameters,
	CallApplicationID,
	CallChainID,
	CallNextBlockHeight,
	CallSystemTime,
	CallChainBalance,
	CallOwnerBalance,
	CallOwnerBalances,
	CallBalanceOwners,
	CallHTTPRequest,
	CallReadDataBlob,
	CallAssertDataBlobExists,
	CallScheduleOperation,
	CallQueryApplication,
	CallContainsKey,
	CallReadValue,
	CallFindKeysByPrefix,
}

// factCalls take no arguments and may be listed in an application's reads.
var factCalls = []string{
	CallParameters,
	CallApplicationID,
	CallChainID,
	CallNextBlockHeight,
	CallSystemTime,
	CallChainBalance,
	CallOwnerBalances,
	CallBalanceOwners,
}

func isFactCall(name string) bool {
	return slices.Contains(factCalls, name)
}

// Scenario applications exchange arbitrary JSON. Responses stay raw so they
// can be compared canonically.
type (
	scenarioAbi     = abi.Abi[any, json.RawMessage]
	scenarioRuntime = runtime.Runtime[any, scenarioAbi]
)

// invoke performs one facade call. Argument errors are returned; aborts
// propagate to the caller's abort.Run.
func invoke(rt *scenarioRuntime, apps map[string]base.ApplicationID, call string, args map[string]any) (any, error) {
	switch call {
	case CallParameters:
		return rt.ApplicationParameters(), nil
	case CallApplicationID:
		return rt.ApplicationID(), nil
	case CallChainID:
		return rt.ChainID(), nil
	case CallNextBlockHeight:
		return rt.NextBlockHeight(), nil
	case CallSystemTime:
		return rt.SystemTime(), nil
	case CallChainBalance:
		return rt.ChainBalance(), nil
	case CallOwnerBalance:
		s, err := stringArg(args, "owner")
		if err != nil {
			return nil, err
		}
		owner, err := base.ParseAccountOwner(s)
		if err != nil {
			return nil, err
		}
		return rt.OwnerBalance(owner), nil
	case CallOwnerBalances:
		return rt.OwnerBalances(), nil
	case CallBalanceOwners:
		return rt.BalanceOwners(), nil
	case CallHTTPRequest:
		req, err := httpArg(args)
		if err != nil {
			return nil, err
		}
		resp := rt.HTTPRequest(req)
		out := map[string]any{"status": resp.Status, "body": bytesValue(resp.Body)}
		if len(resp.Headers) > 0 {
			headers := make([]any, len(resp.Headers))
			for i, h := range resp.Headers {
				headers[i] = map[string]any{"name": h.Name, "value": bytesValue(h.Value)}
			}
			out["headers"] = headers
		}
		return out, nil
	case CallReadDataBlob:
		hash, err := blobArg(args)
		if err != nil {
			return nil, err
		}
		return bytesValue(rt.ReadDataBlob(hash)), nil
	case CallAssertDataBlobExists:
		hash, err := blobArg(args)
		if err != nil {
			return nil, err
		}
		rt.AssertDataBlobExists(hash)
		return nil, nil
	case CallScheduleOperation:
		op, ok := args["operation"]
		if !ok {
			return nil, fmt.Errorf("argument %q is required", "operation")
		}
		rt.ScheduleOperation(op)
		return nil, nil
	case CallQueryApplication:
		name, err := stringArg(args, "application")
		if err != nil {
			return nil, err
		}
		id, ok := apps[name]
		if !ok {
			return nil, fmt.Errorf("unknown application %q", name)
		}
		target := abi.WithAbi[abi.Abi[any, json.RawMessage]](id)
		return runtime.QueryApplication(rt, target, args["query"]), nil
	case CallContainsKey:
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		return rt.KeyValueStore().ContainsKey([]byte(key))
	case CallReadValue:
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		value, ok, err := rt.KeyValueStore().ReadValueBytes([]byte(key))
		if err != nil || !ok {
			return nil, err
		}
		return bytesValue(value), nil
	case CallFindKeysByPrefix:
		prefix, err := stringArg(args, "prefix")
		if err != nil {
			return nil, err
		}
		keys, err := rt.KeyValueStore().FindKeysByPrefix([]byte(prefix))
		if err != nil {
			return nil, err
		}
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = string(k)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown call %q", call)
	}
}

// bytesValue renders b as a string when canonical JSON carries it unchanged
// (valid UTF-8 already in NFC) and as {"hex": ...} otherwise.
func bytesValue(b []byte) any {
	if utf8.Valid(b) && norm.NFC.IsNormal(b) {
		return string(b)
	}
	return map[string]any{"hex": hex.EncodeToString(b)}
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("argument %q is required", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", name, v)
	}
	return s, nil
}

// blobArg resolves a blob either by hash or by content.
func blobArg(args map[string]any) (base.DataBlobHash, error) {
	if _, ok := args["content"]; ok {
		content, err := stringArg(args, "content")
		if err != nil {
			return base.DataBlobHash{}, err
		}
		return base.BlobHashOf([]byte(content)), nil
	}
	s, err := stringArg(args, "hash")
	if err != nil {
		return base.DataBlobHash{}, err
	}
	return base.ParseDataBlobHash(s)
}

func httpArg(args map[string]any) (base.HTTPRequest, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return base.HTTPRequest{}, err
	}
	req := base.NewHTTPGet(url)
	if _, ok := args["method"]; ok {
		method, err := stringArg(args, "method")
		if err != nil {
			return base.HTTPRequest{}, err
		}
		req.Method = base.HTTPMethod(method)
	}
	if _, ok := args["body"]; ok {
		body, err := stringArg(args, "body")
		if err != nil {
			return base.HTTPRequest{}, err
		}
		req.Body = []byte(body)
	}
	return req, nil
}
