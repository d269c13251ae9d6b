package base

import "strings"

// HTTPMethod is the request verb of an oracle call.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodHead   HTTPMethod = "HEAD"
	MethodPatch  HTTPMethod = "PATCH"
)

// HTTPHeader is a single header. Order and duplicates are preserved.
type HTTPHeader struct {
	Name  string `json:"name" yaml:"name"`
	Value []byte `json:"value" yaml:"value"`
}

// HTTPRequest is an oracle request.
type HTTPRequest struct {
	Method  HTTPMethod   `json:"method"`
	URL     string       `json:"url"`
	Headers []HTTPHeader `json:"headers,omitempty"`
	Body    []byte       `json:"body,omitempty"`
}

// NewHTTPGet returns a GET request without headers or body.
func NewHTTPGet(url string) HTTPRequest {
	return HTTPRequest{Method: MethodGet, URL: url}
}

// NewHTTPPost returns a POST request carrying body.
func NewHTTPPost(url string, body []byte) HTTPRequest {
	return HTTPRequest{Method: MethodPost, URL: url, Body: body}
}

// WithHeader returns a copy of r with one more header appended.
func (r HTTPRequest) WithHeader(name string, value []byte) HTTPRequest {
	headers := make([]HTTPHeader, len(r.Headers), len(r.Headers)+1)
	copy(headers, r.Headers)
	r.Headers = append(headers, HTTPHeader{Name: name, Value: value})
	return r
}

// HTTPResponse is the decoded oracle response envelope.
type HTTPResponse struct {
	Status  uint16       `json:"status"`
	Headers []HTTPHeader `json:"headers,omitempty"`
	Body    []byte       `json:"body,omitempty"`
}

// Header returns the first value of the named header, matched case-insensitively.
func (r HTTPResponse) Header(name string) ([]byte, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return nil, false
}

// OK reports whether the status is 2xx.
func (r HTTPResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
