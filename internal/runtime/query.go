package runtime

import (
	"github.com/roach88/svcrt/internal/abi"
	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/codec"
)

// QueryApplication sends query to another application and returns its
// typed response.
//
// The query is serialized as JSON and dispatched through the host with the
// interface tag erased; the host runs the target's service, which may itself
// call back into this runtime. The reply is decoded as R.
//
//   - a query that does not encode aborts with ENCODING_FAILED;
//   - a reply that does not decode as R aborts with DECODING_FAILED;
//   - host-side failures abort from inside the host call.
func QueryApplication[Q, R, P, A any](rt *Runtime[P, A], app abi.ApplicationID[abi.Abi[Q, R]], query Q) R {
	payload, err := codec.EncodeJSON(query)
	if err != nil {
		abort.Throw(abort.New(abort.CodeEncodingFailed, "application query did not encode", err).
			With("application", app.String()))
	}

	reply := rt.host.DispatchApplicationQuery(app.ForgetAbi(), payload)

	var response R
	if err := codec.DecodeJSON(reply, &response); err != nil {
		abort.Throw(abort.New(abort.CodeDecodingFailed, "application response did not decode", err).
			With("application", app.String()))
	}
	return response
}
