package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/watchdesk-systems/watchdesk/internal/summary"
)

type mockCompiler struct {
	mu      sync.Mutex
	digest  string
	err     error
	delay   time.Duration
	calls   int
	blocked chan struct{}
}

func (m *mockCompiler) Compile(ctx context.Context, window time.Duration) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.blocked != nil {
		<-m.blocked
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return summary.UnavailableDigest, m.err
	}
	return m.digest, nil
}

func (m *mockCompiler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockChannel struct {
	mu    sync.Mutex
	calls int
	last  string
	err   error
}

func (m *mockChannel) Send(ctx context.Context, subject, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls++
	m.last = text
	return nil
}

func (m *mockChannel) Type() string {
	return "mock"
}

func (m *mockChannel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockChannel) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&mockCompiler{digest: "ok"}, &mockChannel{}, Config{Interval: time.Hour}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should return error")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() returned error: %v", err)
	}

	if err := s.Stop(); err == nil {
		t.Error("second Stop() should return error")
	}
}

func TestSchedulerDispatchesDigest(t *testing.T) {
	compiler := &mockCompiler{digest: "Alert summary (last 1h)\nTotal alerts: 3"}
	channel := &mockChannel{}

	s := NewScheduler(compiler, channel, Config{Interval: 10 * time.Millisecond}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for channel.CallCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("digest never delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() returned error: %v", err)
	}

	if got := channel.Last(); !strings.Contains(got, "Total alerts: 3") {
		t.Errorf("delivered digest = %q, want summary text", got)
	}
}

func TestSchedulerSendsUnavailableDigestOnStoreFailure(t *testing.T) {
	compiler := &mockCompiler{err: errors.New("redis down")}
	channel := &mockChannel{}

	s := NewScheduler(compiler, channel, Config{}, nil)
	s.RunOnce(context.Background())

	if channel.CallCount() != 1 {
		t.Fatalf("channel calls = %d, want 1", channel.CallCount())
	}
	if channel.Last() != summary.UnavailableDigest {
		t.Errorf("digest = %q, want unavailable digest", channel.Last())
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	blocked := make(chan struct{})
	compiler := &mockCompiler{digest: "ok", blocked: blocked}
	channel := &mockChannel{}

	s := NewScheduler(compiler, channel, Config{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunOnce(context.Background())
	}()

	// Wait for the first run to enter the compiler, then fire a second
	// tick; it must be dropped, not queued.
	deadline := time.After(2 * time.Second)
	for compiler.CallCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first run never started")
		case <-time.After(time.Millisecond):
		}
	}

	s.RunOnce(context.Background())
	close(blocked)
	wg.Wait()

	if got := compiler.CallCount(); got != 1 {
		t.Errorf("compiler calls = %d, want 1 (overlapping run should be skipped)", got)
	}
	if channel.CallCount() != 1 {
		t.Errorf("channel calls = %d, want 1", channel.CallCount())
	}
}

func TestSchedulerNilChannel(t *testing.T) {
	compiler := &mockCompiler{digest: "ok"}

	s := NewScheduler(compiler, nil, Config{}, nil)
	s.RunOnce(context.Background())

	if compiler.CallCount() != 1 {
		t.Errorf("compiler calls = %d, want 1", compiler.CallCount())
	}
}
