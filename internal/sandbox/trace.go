package sandbox

import (
	"github.com/roach88/svcrt/internal/canonical"
	"github.com/roach88/svcrt/internal/host"
)

// TraceEvent records one primitive invocation.
type TraceEvent struct {
	Seq         int64
	Depth       int
	Application string
	Primitive   host.Primitive
	Detail      map[string]string
}

// CanonicalDetail returns the canonical JSON form of the event detail.
func (e TraceEvent) CanonicalDetail() string {
	detail := e.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	data, err := canonical.Marshal(detail)
	if err != nil {
		// A map of strings always encodes.
		panic(err)
	}
	return string(data)
}

// Canonical returns the event as a canonical JSON-ready value.
func (e TraceEvent) Canonical() map[string]any {
	detail := make(map[string]any, len(e.Detail))
	for k, v := range e.Detail {
		detail[k] = v
	}
	return map[string]any{
		"seq":         e.Seq,
		"depth":       e.Depth,
		"application": e.Application,
		"primitive":   string(e.Primitive),
		"detail":      detail,
	}
}

// shortID abbreviates a hex id for trace readability.
func shortID(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}
