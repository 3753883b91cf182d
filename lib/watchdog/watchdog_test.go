// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/physiclaw/physiclaw/lib/audit"
	"github.com/physiclaw/physiclaw/lib/clock"
	"github.com/physiclaw/physiclaw/lib/logging"
	"github.com/physiclaw/physiclaw/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// scriptedEnumerator returns a fixed connection list and signals each
// poll on polled.
type scriptedEnumerator struct {
	mu          sync.Mutex
	connections []Connection
	err         error
	polled      chan struct{}
}

func newScriptedEnumerator(connections ...Connection) *scriptedEnumerator {
	return &scriptedEnumerator{connections: connections, polled: make(chan struct{}, 64)}
}

func (s *scriptedEnumerator) Connections() ([]Connection, error) {
	s.mu.Lock()
	connections, err := s.connections, s.err
	s.mu.Unlock()
	s.polled <- struct{}{}
	return connections, err
}

func (s *scriptedEnumerator) set(connections ...Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections = connections
}

func established(remote string, port uint64) Connection {
	return Connection{Family: "tcp", LocalAddr: "10.0.0.5", RemoteAddr: remote, RemotePort: port, State: "ESTABLISHED"}
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (c *countingRecorder) Record(kind string, _ map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = make(map[string]int)
	}
	c.events[kind]++
}

func (c *countingRecorder) count(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[kind]
}

func startWatchdog(t *testing.T, enumerator Enumerator, recorder audit.Recorder) (*Watchdog, *clock.FakeClock, chan Termination, chan struct{}) {
	t.Helper()
	fake := clock.Fake(epoch)
	watchdog, err := New(Config{
		Enumerator: enumerator,
		Interval:   time.Second,
		Clock:      fake,
		Recorder:   recorder,
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	terminate := make(chan Termination, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchdog.Run(ctx, terminate)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	fake.WaitForTickers(1)
	return watchdog, fake, terminate, done
}

func TestSafeConnectionsNeverTerminate(t *testing.T) {
	enumerator := newScriptedEnumerator(
		established("127.0.0.1", 8080),
		established("192.168.1.20", 5432),
		established("fe80::1%eth0", 22),
	)
	recorder := &countingRecorder{}
	watchdog, fake, terminate, _ := startWatchdog(t, enumerator, recorder)

	for range 5 {
		fake.Advance(time.Second)
		testutil.RequireReceive(t, enumerator.polled, 5*time.Second, "waiting for poll")
	}

	select {
	case termination := <-terminate:
		t.Fatalf("unexpected termination: %+v", termination)
	default:
	}
	if watchdog.State() != Watching {
		t.Errorf("state = %s, want watching", watchdog.State())
	}
	if recorder.count(audit.EventEgressBlock) != 0 {
		t.Error("safe connections should not be recorded")
	}
}

func TestViolationTerminatesWithinOneInterval(t *testing.T) {
	enumerator := newScriptedEnumerator(established("127.0.0.1", 8080))
	recorder := &countingRecorder{}
	watchdog, fake, terminate, done := startWatchdog(t, enumerator, recorder)

	fake.Advance(time.Second)
	testutil.RequireReceive(t, enumerator.polled, 5*time.Second, "waiting for first poll")

	enumerator.set(
		established("127.0.0.1", 8080),
		established("203.0.113.9", 443),
		established("2001:db8::1", 443),
	)
	fake.Advance(time.Second)

	termination := testutil.RequireReceive(t, terminate, 5*time.Second, "waiting for termination")
	if len(termination.Violations) != 2 {
		t.Fatalf("violations = %+v, want 2", termination.Violations)
	}
	if termination.Violations[0].Remote() != "203.0.113.9:443" {
		t.Errorf("first violation = %s", termination.Violations[0].Remote())
	}
	if !termination.DetectedAt.Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("detected at %v", termination.DetectedAt)
	}
	if recorder.count(audit.EventEgressBlock) != 2 {
		t.Errorf("egress_block records = %d, want 2", recorder.count(audit.EventEgressBlock))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after termination")
	}
	if watchdog.State() != Terminating {
		t.Errorf("state = %s, want terminating", watchdog.State())
	}
}

func TestViolationRecordedToLedger(t *testing.T) {
	path := audit.PathFor(t.TempDir())
	ledger, err := audit.Open(audit.Config{Path: path, Clock: clock.Fake(epoch), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer ledger.Close()

	enumerator := newScriptedEnumerator(established("8.8.8.8", 53))
	_, fake, terminate, _ := startWatchdog(t, enumerator, ledger)
	fake.Advance(time.Second)
	testutil.RequireReceive(t, terminate, 5*time.Second, "waiting for termination")

	blocks := testutil.FilterEvents(testutil.ReadJSONLines(t, path), audit.EventEgressBlock)
	if len(blocks) != 1 {
		t.Fatalf("egress_block lines = %d, want 1", len(blocks))
	}
	if blocks[0]["remote"] != "8.8.8.8" {
		t.Errorf("remote = %v", blocks[0]["remote"])
	}
}

func TestPollErrorsDoNotTerminate(t *testing.T) {
	enumerator := newScriptedEnumerator()
	enumerator.err = errors.New("transient")
	watchdog, fake, terminate, _ := startWatchdog(t, enumerator, nil)

	fake.Advance(time.Second)
	testutil.RequireReceive(t, enumerator.polled, 5*time.Second, "waiting for poll")

	select {
	case <-terminate:
		t.Fatal("enumeration errors must not terminate")
	default:
	}
	if watchdog.State() != Watching {
		t.Errorf("state = %s", watchdog.State())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	enumerator := newScriptedEnumerator()
	watchdog, err := New(Config{Enumerator: enumerator, Clock: clock.Fake(epoch), Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if watchdog.Interval() != DefaultInterval {
		t.Errorf("interval = %v, want default", watchdog.Interval())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchdog.Run(ctx, make(chan Termination))
	}()
	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "waiting for Run to return")
	if watchdog.State() != Stopped {
		t.Errorf("state = %s, want stopped", watchdog.State())
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without enumerator")
	}
	if _, err := New(Config{Enumerator: newScriptedEnumerator(), Interval: -time.Second}); err == nil {
		t.Error("expected error for negative interval")
	}
}

func TestProcEnumeratorSeesLoopback(t *testing.T) {
	enumerator, err := NewProcEnumerator("", 0)
	if errors.Is(err, ErrUnavailable) {
		t.Skipf("procfs unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("NewProcEnumerator: %v", err)
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		connection, err := listener.Accept()
		if err == nil {
			defer connection.Close()
			buffer := make([]byte, 1)
			connection.Read(buffer)
		}
	}()
	client, err := net.Dial("tcp4", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	port := uint64(listener.Addr().(*net.TCPAddr).Port)

	connections, err := enumerator.Connections()
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	found := false
	for _, connection := range connections {
		if connection.RemotePort == port && connection.RemoteAddr == "127.0.0.1" {
			found = true
			if Classify(connection.RemoteAddr) != Safe {
				t.Errorf("loopback classified as %s", Classify(connection.RemoteAddr))
			}
		}
	}
	if !found {
		t.Errorf("loopback connection to port %d not enumerated: %+v", port, connections)
	}
}

func TestProcEnumeratorUnavailable(t *testing.T) {
	_, err := NewProcEnumerator(t.TempDir(), 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for an empty mount, got %v", err)
	}
}
