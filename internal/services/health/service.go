package health

import (
	"context"
	"time"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Service encapsulates health-related checks.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewService constructs a health service over the named checks. Nil checks
// are skipped.
func NewService(checks map[string]Pinger) *Service {
	kept := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			kept[name] = p
		}
	}
	return &Service{checks: kept, timeout: 3 * time.Second}
}

// Report is the health payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// Status runs every check concurrently. A failing check makes the report not
// OK; the process itself stays up.
func (s *Service) Status(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.checks))
	for name, p := range s.checks {
		go func(name string, p Pinger) {
			results <- result{name: name, err: p.Ping(ctx)}
		}(name, p)
	}

	report := Report{OK: true, Checks: make(map[string]string, len(s.checks))}
	for range s.checks {
		r := <-results
		if r.err != nil {
			report.OK = false
			report.Checks[r.name] = r.err.Error()
			continue
		}
		report.Checks[r.name] = "ok"
	}
	return report
}
