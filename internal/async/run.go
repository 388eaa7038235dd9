package async

import (
	"context"
	"errors"
	"strings"
	"time"

	"sheetchart-web/internal/apiclient"
)

// Op is one named remote operation against a slice.
type Op[S, T any] struct {
	// Name identifies the operation, e.g. "files/uploadFile".
	Name string
	// Fallback is the message stored when the failure carries none.
	Fallback string
	// Call performs the remote work. It is the only suspension point.
	Call func(ctx context.Context) (T, error)
	// Fulfilled merges the payload into the state. Nil means no change.
	Fulfilled func(state *S, payload T)
}

// Result is the outcome delivered by Go.
type Result[T any] struct {
	Value T
	Err   error
}

// Run drives op through pending and exactly one terminal phase, then returns
// the payload or error so the caller can react (notify, navigate). No retry is
// attempted.
func Run[S, T any](ctx context.Context, s *Slice[S], op Op[S, T]) (T, error) {
	start := time.Now()
	s.begin(op.Name)
	payload, err := op.Call(ctx)
	return settle(s, op, start, payload, err)
}

// Go starts op on its own goroutine. The pending phase is applied before Go
// returns.
func Go[S, T any](ctx context.Context, s *Slice[S], op Op[S, T]) <-chan Result[T] {
	out := make(chan Result[T], 1)
	start := time.Now()
	s.begin(op.Name)
	go func() {
		payload, err := op.Call(ctx)
		value, err := settle(s, op, start, payload, err)
		out <- Result[T]{Value: value, Err: err}
	}()
	return out
}

func settle[S, T any](s *Slice[S], op Op[S, T], start time.Time, payload T, err error) (T, error) {
	if err != nil {
		s.reject(op.Name, err, Message(err, op.Fallback), time.Since(start))
		var zero T
		return zero, err
	}
	var reduce func(*S)
	if op.Fulfilled != nil {
		reduce = func(st *S) { op.Fulfilled(st, payload) }
	}
	s.fulfill(op.Name, reduce, time.Since(start))
	return payload, nil
}

type userMessager interface {
	UserMessage() string
}

// Message reduces a failure to the text stored in a slice. Authentication
// failures yield "" because the session observer handles them globally.
// Transport errors never leak; the fallback is used instead.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if apiclient.IsUnauthorized(err) {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	if strings.TrimSpace(fallback) == "" {
		return "Request failed"
	}
	return fallback
}
