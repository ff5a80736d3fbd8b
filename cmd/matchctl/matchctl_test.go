package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/freelamatch/internal/ranking"
	"github.com/onnwee/freelamatch/internal/ratelimit"
	"github.com/onnwee/freelamatch/internal/shortlist"
	"github.com/onnwee/freelamatch/internal/trigger"
)

type testEnv struct {
	queue  *trigger.ChanQueue
	closed bool
}

// connector returns a connectFunc over in-memory backends seeded with one job.
func (e *testEnv) connector() connectFunc {
	jobs := shortlist.NewInMemoryJobRepository()
	profiles := shortlist.NewInMemoryProfileRepository()
	jobs.AddJob(&ranking.Job{ID: "job-1", Skills: []string{"Go"}, Embedding: []float32{1, 0}}, shortlist.JobStatusOpen)
	profiles.AddProfile(&ranking.CandidateProfile{ID: "ana", Skills: []string{"Go"}, TrustScore: 4, Embedding: []float32{1, 0}})
	pipeline := shortlist.NewPipeline(jobs, profiles, profiles, shortlist.NewInMemoryEntryStore(), shortlist.Config{})
	counters := ratelimit.NewMemoryStore()
	e.queue = trigger.NewChanQueue(8)

	return func(context.Context, string, *slog.Logger) (*components, error) {
		return &components{
			shortlists: pipeline,
			counters:   counters,
			queue:      e.queue,
			close:      func() { e.closed = true },
		}, nil
	}
}

func execute(t *testing.T, connect connectFunc, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(connect)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestShortlistGenerateAndShow(t *testing.T) {
	env := &testEnv{}
	connect := env.connector()

	out, err := execute(t, connect, "shortlist", "generate", "job-1")
	if err != nil {
		t.Fatalf("shortlist generate error = %v", err)
	}
	var generated shortlist.Result
	if err := json.Unmarshal([]byte(out), &generated); err != nil {
		t.Fatalf("output is not a shortlist: %v\n%s", err, out)
	}
	if generated.Count != 1 || generated.Entries[0].CandidateID != "ana" {
		t.Errorf("unexpected shortlist: %+v", generated)
	}
	if !env.closed {
		t.Error("components were not closed")
	}

	out, err = execute(t, connect, "shortlist", "show", "job-1")
	if err != nil {
		t.Fatalf("shortlist show error = %v", err)
	}
	if !strings.Contains(out, `"candidateId": "ana"`) {
		t.Errorf("show output missing entry:\n%s", out)
	}
}

func TestShortlistGenerate_UnknownJob(t *testing.T) {
	env := &testEnv{}
	_, err := execute(t, env.connector(), "shortlist", "generate", "missing")
	if !errors.Is(err, shortlist.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRateLimitCheck(t *testing.T) {
	env := &testEnv{}
	connect := env.connector()

	args := []string{"ratelimit", "check", "cli:test", "--max", "2", "--interval", "1h"}
	wantAllowed := []bool{true, true, false}
	for i, want := range wantAllowed {
		out, err := execute(t, connect, args...)
		if err != nil {
			t.Fatalf("check %d error = %v", i+1, err)
		}
		var got checkOutput
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("bad output: %v\n%s", err, out)
		}
		if got.Allowed != want {
			t.Errorf("check %d allowed = %v, want %v", i+1, got.Allowed, want)
		}
	}
}

func TestRateLimitCheck_InvalidPolicy(t *testing.T) {
	env := &testEnv{}
	if _, err := execute(t, env.connector(), "ratelimit", "check", "k", "--max", "0"); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := execute(t, env.connector(), "ratelimit", "check", "k"); err == nil {
		t.Error("expected error when --max is missing")
	}
}

func TestQueuePush(t *testing.T) {
	env := &testEnv{}
	out, err := execute(t, env.connector(), "queue", "push", "job-1", "job-2")
	if err != nil {
		t.Fatalf("queue push error = %v", err)
	}
	if !strings.Contains(out, "queued job-2") {
		t.Errorf("unexpected output: %q", out)
	}
	for _, want := range []string{"job-1", "job-2"} {
		got, err := env.queue.Pop(context.Background(), 100*time.Millisecond)
		if err != nil || got != want {
			t.Errorf("Pop() = %q, %v; want %q", got, err, want)
		}
	}
}

func TestConnectError(t *testing.T) {
	failing := func(context.Context, string, *slog.Logger) (*components, error) {
		return nil, errors.New("database unreachable")
	}
	if _, err := execute(t, failing, "queue", "push", "job-1"); err == nil {
		t.Error("expected connection error")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "matchctl version:") {
		t.Errorf("unexpected version output: %q", out)
	}
}
