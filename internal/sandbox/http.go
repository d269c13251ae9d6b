package sandbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/host"
)

// maxOracleBody caps the size of a live oracle response body.
const maxOracleBody = 1 << 20

var errBodyTooLarge = fmt.Errorf("oracle response body exceeds %d bytes", maxOracleBody)

func oracleKey(req base.HTTPRequest) string {
	return string(req.Method) + " " + req.URL
}

// PerformHTTPRequest answers from the canned responses first and falls back
// to the configured HTTP client. Without either the execution aborts.
func (h *Host) PerformHTTPRequest(req base.HTTPRequest) host.RawHTTPResponse {
	h.record(host.PrimPerformHTTPRequest, map[string]string{
		"method": string(req.Method),
		"url":    req.URL,
	})

	if resp, ok := h.oracle[oracleKey(req)]; ok {
		return host.RawHTTPResponse{
			Status:  resp.Status,
			Headers: append([]base.HTTPHeader(nil), resp.Headers...),
			Body:    bytes.Clone(resp.Body),
		}
	}
	if h.httpClient == nil {
		h.raise(abort.New(abort.CodeHostAbort, "no oracle response configured", nil).
			With("url", req.URL))
	}

	resp, err := h.doHTTP(req)
	if err != nil {
		a := abort.New(abort.CodeHostAbort, "oracle request failed", err).With("url", req.URL)
		if errors.Is(err, errBodyTooLarge) {
			a = a.With("reason", "body_too_large")
		}
		h.raise(a)
	}
	return resp
}

func (h *Host) doHTTP(req base.HTTPRequest) (host.RawHTTPResponse, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(h.ctx, string(req.Method), req.URL, body)
	if err != nil {
		return host.RawHTTPResponse{}, err
	}
	for _, header := range req.Headers {
		httpReq.Header.Add(header.Name, string(header.Value))
	}

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return host.RawHTTPResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOracleBody+1))
	if err != nil {
		return host.RawHTTPResponse{}, err
	}
	if len(data) > maxOracleBody {
		return host.RawHTTPResponse{}, errBodyTooLarge
	}

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	var headers []base.HTTPHeader
	for _, name := range names {
		for _, value := range resp.Header[name] {
			headers = append(headers, base.HTTPHeader{Name: name, Value: []byte(value)})
		}
	}

	return host.RawHTTPResponse{
		Status:  uint16(resp.StatusCode),
		Headers: headers,
		Body:    data,
	}, nil
}
