package jobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newRunner(t *testing.T, lock *fakeLock, reg prometheus.Registerer) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerParams{
		Logger:  logger.New(logger.Options{ServiceName: "jobs-test", Output: io.Discard}),
		Locks:   func(string) (Lock, error) { return lock, nil },
		Metrics: metrics.NewJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct runner: %v", err)
	}
	return runner
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if labelValue(m, "job") == job {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRunnerRunsJobAndReleasesLock(t *testing.T) {
	reg := prometheus.NewRegistry()
	lock := &fakeLock{}
	runner := newRunner(t, lock, reg)
	job := &testJob{name: "slot-reconcile"}

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected one run, got %d", job.runs)
	}
	if lock.held || lock.released != 1 {
		t.Fatalf("expected lock released once, held=%v released=%d", lock.held, lock.released)
	}
	if got := counterValue(t, reg, "slotbook_job_success_total", "slot-reconcile"); got != 1 {
		t.Fatalf("expected success counter 1, got %v", got)
	}
}

func TestRunnerSkipsWhenLockBusy(t *testing.T) {
	reg := prometheus.NewRegistry()
	lock := &fakeLock{held: true}
	runner := newRunner(t, lock, reg)
	job := &testJob{name: "slot-reconcile"}

	err := runner.Run(context.Background(), job)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
	if got := counterValue(t, reg, "slotbook_job_skipped_total", "slot-reconcile"); got != 1 {
		t.Fatalf("expected skipped counter 1, got %v", got)
	}
}

func TestRunAllCombinesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	runner := newRunner(t, &fakeLock{}, reg)
	ok := &testJob{name: "ok"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	worse := &testJob{name: "worse", err: errors.New("bang")}

	err := runner.RunAll(context.Background(), NewRegistry(ok, bad, worse))
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !strings.Contains(err.Error(), "bad: boom") || !strings.Contains(err.Error(), "worse: bang") {
		t.Fatalf("unexpected error %q", err)
	}
	if ok.runs != 1 || bad.runs != 1 || worse.runs != 1 {
		t.Fatalf("every job must run once")
	}
	if got := counterValue(t, reg, "slotbook_job_failure_total", "bad"); got != 1 {
		t.Fatalf("expected failure counter 1, got %v", got)
	}
}

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &testJob{name: "a"}
	jobB := &testJob{name: "b"}
	registry.Register(jobA)
	registry.Register(nil)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if got, ok := registry.Lookup("b"); !ok || got != jobB {
		t.Fatalf("lookup failed")
	}
	if _, ok := registry.Lookup("c"); ok {
		t.Fatalf("unexpected lookup hit")
	}
}
