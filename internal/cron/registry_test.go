package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	audit := &stubJob{name: "orphaned-shift-audit"}
	stale := &stubJob{name: "stale-shift-report"}
	registry, err := NewRegistry(audit, stale)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != audit || jobs[1] != stale {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if names := registry.Names(); names[0] != "orphaned-shift-audit" || names[1] != "stale-shift-report" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestRegistryRejectsDuplicateAndNilJobs(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "outbox-retention"}, &stubJob{name: "outbox-retention"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("expected nil job error")
	}
	if _, err := NewRegistry(&stubJob{}); err == nil {
		t.Fatal("expected empty name error")
	}
}
