// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowMovesOnlyOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	if !clock.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), epoch)
	}
	clock.Advance(3 * time.Second)
	if got := clock.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("Now() after Advance = %v", got)
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(5 * time.Second)
	defer ticker.Stop()

	clock.Advance(4 * time.Second)
	select {
	case tick := <-ticker.C:
		t.Fatalf("ticker fired early at %v", tick)
	default:
	}

	clock.Advance(time.Second)
	select {
	case tick := <-ticker.C:
		if !tick.Equal(epoch.Add(5 * time.Second)) {
			t.Errorf("tick = %v, want %v", tick, epoch.Add(5*time.Second))
		}
	default:
		t.Fatal("ticker did not fire at its deadline")
	}
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(10 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("expected dropped ticks, got a second buffered tick")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	if clock.ActiveTickers() != 1 {
		t.Fatalf("ActiveTickers() = %d, want 1", clock.ActiveTickers())
	}
	ticker.Stop()
	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
	if clock.ActiveTickers() != 0 {
		t.Errorf("ActiveTickers() = %d after Stop", clock.ActiveTickers())
	}
}

func TestWaitForTickers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		clock.WaitForTickers(1)
		close(done)
	}()
	clock.NewTicker(time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForTickers did not return after a ticker was created")
	}
}
