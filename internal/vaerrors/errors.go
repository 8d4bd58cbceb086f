// Package vaerrors provides the typed error taxonomy used across the
// auralization core. It mirrors the standard library's errors package
// (Is/As/Unwrap/Join all pass through) but adds a fluent builder that
// attaches a Kind, an originating component, and arbitrary context so
// control-thread callers can branch on error category without parsing
// strings.
package vaerrors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Kind is the error taxonomy from the spec's error handling design.
type Kind string

const (
	KindUnspecified      Kind = "unspecified"
	KindModalError       Kind = "modal_error"
	KindNetworkError     Kind = "network_error"
	KindProtocolError    Kind = "protocol_error"
	KindNotImplemented   Kind = "not_implemented"
	KindInvalidParameter Kind = "invalid_parameter"
	KindInvalidID        Kind = "invalid_id"
	KindResourceInUse    Kind = "resource_in_use"
	KindFileNotFound     Kind = "file_not_found"
)

// EnhancedError wraps an error with a kind, a component tag, and
// free-form context, the way a control-thread API error needs to carry
// enough structure for a caller to react without string matching.
type EnhancedError struct {
	Err       error
	Component string
	Kind      Kind
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Err.Error())
}

func (e *EnhancedError) Unwrap() error { return e.Err }

func (e *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if stderrors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return stderrors.Is(e.Err, target)
}

// GetContext returns a copy of the error's context map.
func (e *EnhancedError) GetContext() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.Context == nil {
		return nil
	}
	out := make(map[string]any, len(e.Context))
	maps.Copy(out, e.Context)
	return out
}

// Builder provides a fluent interface for constructing an EnhancedError.
type Builder struct {
	err       error
	component string
	kind      Kind
	context   map[string]any
}

// New starts building an enhanced error from an existing error (nil is allowed).
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf builds an enhanced error from a formatted message.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

func (b *Builder) Kind(kind Kind) *Builder {
	b.kind = kind
	return b
}

func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

func (b *Builder) Build() *EnhancedError {
	if b.component == "" {
		b.component = "unknown"
	}
	if b.kind == "" {
		b.kind = KindUnspecified
	}
	return &EnhancedError{
		Err:       b.err,
		Component: b.component,
		Kind:      b.kind,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// KindOf returns the Kind of err if it is (or wraps) an *EnhancedError,
// and KindUnspecified otherwise.
func KindOf(err error) Kind {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Kind
	}
	return KindUnspecified
}

// IsKind reports whether err is (or wraps) an *EnhancedError of the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Standard library passthroughs so this package is a drop-in extension.
func NewStd(text string) error             { return stderrors.New(text) }
func Is(err, target error) bool            { return stderrors.Is(err, target) }
func As(err error, target any) bool        { return stderrors.As(err, target) }
func Unwrap(err error) error               { return stderrors.Unwrap(err) }
func Join(errs ...error) error             { return stderrors.Join(errs...) }
