// Package guard decides whether a view may render for the current session.
package guard

import (
	"context"

	"sheetchart-web/internal/session"
)

type Kind int

const (
	RequireAuth Kind = iota
	RequireAdmin
)

func (k Kind) String() string {
	if k == RequireAdmin {
		return "admin"
	}
	return "auth"
}

type Outcome int

const (
	Allow Outcome = iota
	Redirect
	// Pending means a token is held but its user is not yet known.
	Pending
)

// Redirect targets.
const (
	LoginPath     = session.LoginPath
	DashboardPath = "/dashboard"
)

type Decision struct {
	Outcome  Outcome
	Location string
}

// Evaluate is the pure guard decision.
func Evaluate(kind Kind, s session.Session) Decision {
	if !s.Authenticated() {
		return Decision{Outcome: Redirect, Location: LoginPath}
	}
	if !s.Resolved() {
		return Decision{Outcome: Pending}
	}
	if kind == RequireAdmin && !s.IsAdmin() {
		return Decision{Outcome: Redirect, Location: DashboardPath}
	}
	return Decision{Outcome: Allow}
}

// Resolver exposes a workspace session to the guards.
type Resolver interface {
	Session() session.Session
	// ResolveSession fetches the profile behind the held token.
	ResolveSession(ctx context.Context) error
}

// Check evaluates kind and resolves a pending decision by fetching the
// profile once. An authentication failure during resolution clears the
// session, so the second evaluation redirects to login. Any other failure
// is returned with the pending decision.
func Check(ctx context.Context, kind Kind, r Resolver) (Decision, error) {
	d := Evaluate(kind, r.Session())
	if d.Outcome != Pending {
		return d, nil
	}
	if err := r.ResolveSession(ctx); err != nil {
		after := Evaluate(kind, r.Session())
		if after.Outcome == Pending {
			return after, err
		}
		return after, nil
	}
	return Evaluate(kind, r.Session()), nil
}
