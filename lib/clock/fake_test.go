// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(testEpoch)
	if !c.Now().Equal(testEpoch) {
		t.Errorf("Now() = %v, want %v", c.Now(), testEpoch)
	}

	c.Advance(time.Minute)
	if !c.Now().Equal(testEpoch.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v", c.Now())
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(testEpoch)

	ch := c.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	c.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case firedAt := <-ch:
		if !firedAt.Equal(testEpoch.Add(10 * time.Second)) {
			t.Errorf("fired at %v", firedAt)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	c := Fake(testEpoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeSleepUnblocks(t *testing.T) {
	c := Fake(testEpoch)

	done := make(chan struct{})
	go func() {
		c.Sleep(5 * time.Second)
		close(done)
	}()

	c.WaitForWaiters(1)
	c.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not unblock after Advance")
	}
}

func TestFakeAdvanceFiresAllDueWaiters(t *testing.T) {
	c := Fake(testEpoch)

	late := c.After(3 * time.Second)
	early := c.After(time.Second)

	c.Advance(5 * time.Second)

	<-early
	<-late
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", c.PendingCount())
	}
}
