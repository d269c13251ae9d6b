// Package abi carries application interface information: the compile-time
// tags that pair an application id with its query and response types, and
// the CUE descriptors that describe the same interface at run time.
package abi

import (
	"github.com/roach88/svcrt/internal/base"
)

// Abi marks an application interface whose service accepts Q and answers R.
// It has no fields; it exists only as a type argument.
//
//	type CounterAbi = abi.Abi[CounterQuery, CounterResponse]
type Abi[Q, R any] struct{}

// ApplicationID is an application id tagged with the interface A of the
// application it names. The tag is erased before the id crosses the host
// boundary.
type ApplicationID[A any] struct {
	id base.ApplicationID
}

// WithAbi attaches interface A to a raw application id.
func WithAbi[A any](id base.ApplicationID) ApplicationID[A] {
	return ApplicationID[A]{id: id}
}

// ForgetAbi returns the untagged id.
func (a ApplicationID[A]) ForgetAbi() base.ApplicationID {
	return a.id
}

// String returns the hex form of the underlying id.
func (a ApplicationID[A]) String() string {
	return a.id.String()
}

// MarshalText implements encoding.TextMarshaler.
func (a ApplicationID[A]) MarshalText() ([]byte, error) {
	return a.id.MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ApplicationID[A]) UnmarshalText(text []byte) error {
	return a.id.UnmarshalText(text)
}
