package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus(t *testing.T) {
	svc := NewService(map[string]Pinger{
		"api":      PingFunc(func(context.Context) error { return nil }),
		"sessions": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		"skipped":  nil,
	})

	report := svc.Status(context.Background())
	if report.OK {
		t.Fatalf("expected failing report")
	}
	if report.Checks["api"] != "ok" {
		t.Fatalf("api check = %q", report.Checks["api"])
	}
	if report.Checks["sessions"] != "connection refused" {
		t.Fatalf("sessions check = %q", report.Checks["sessions"])
	}
	if _, ok := report.Checks["skipped"]; ok {
		t.Fatalf("nil check must be skipped")
	}
}

func TestStatusAllHealthy(t *testing.T) {
	report := NewService(nil).Status(context.Background())
	if !report.OK || len(report.Checks) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
