// Package middleware provides the HTTP middleware stack and the request
// logging, request id, panic recovery and CORS middleware mounted on it.
package middleware

import "net/http"

// Func wraps a handler.
type Func = func(http.Handler) http.Handler

// System is an ordered middleware stack. The first Func added is the
// outermost wrapper.
type System interface {
	Use(fns ...Func)
	Apply(handler http.Handler) http.Handler
	Len() int
}

type stack struct {
	fns []Func
}

// New creates an empty middleware System.
func New() System {
	return &stack{}
}

// Use appends fns to the stack. Nil entries are skipped so optional
// middleware can be passed unconditionally.
func (s *stack) Use(fns ...Func) {
	for _, fn := range fns {
		if fn != nil {
			s.fns = append(s.fns, fn)
		}
	}
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	return Chain(s.fns...)(handler)
}

func (s *stack) Len() int {
	return len(s.fns)
}

// Chain composes fns into one Func, outermost first.
func Chain(fns ...Func) Func {
	return func(h http.Handler) http.Handler {
		for i := len(fns) - 1; i >= 0; i-- {
			h = fns[i](h)
		}
		return h
	}
}
