package realtime

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoomStore(t *testing.T) {
	s := NewRoomStore[string, string]()
	if s == nil {
		t.Fatal("NewRoomStore returned nil")
	}
	if s.Len() != 0 {
		t.Errorf("Len %d, want 0", s.Len())
	}
}

func TestRoomStore_Create_Get(t *testing.T) {
	s := NewRoomStore[string, string]()
	s.Create("room1", "state1")
	room, ok := s.Get("room1")
	if !ok {
		t.Fatal("Get returned false for existing room")
	}
	if room.ID != "room1" {
		t.Errorf("room ID %q, want room1", room.ID)
	}
	if room.State != "state1" {
		t.Errorf("room State %q, want state1", room.State)
	}

	_, ok = s.Get("nonexistent")
	if ok {
		t.Error("Get should return false for missing ID")
	}
}

func TestRoomStore_IDs(t *testing.T) {
	s := NewRoomStore[int, string]()
	s.Create("b", 2)
	s.Create("a", 1)
	ids := s.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs %v, want [a b]", ids)
	}
}

func TestRoomStore_Publish(t *testing.T) {
	s := NewRoomStore[string, string]()
	s.Create("r1", "x")
	hub, ok := s.Broadcaster("r1")
	if !ok {
		t.Fatal("Broadcaster returned false for existing room")
	}
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	s.Publish("r1", "event1")
	got := <-ch
	if got != "event1" {
		t.Errorf("got %q, want event1", got)
	}

	if _, ok := s.Broadcaster("missing"); ok {
		t.Error("Broadcaster should return false for missing ID")
	}
	s.Publish("missing", "ignored")
}

func TestRoomStore_RemoveClosesSubscribers(t *testing.T) {
	s := NewRoomStore[string, string]()
	room := s.Create("r1", "x")
	ch := room.Hub().Subscribe()

	if !s.Remove("r1") {
		t.Fatal("Remove returned false for existing room")
	}
	if _, open := <-ch; open {
		t.Error("subscriber channel should be closed after Remove")
	}
	if _, ok := s.Get("r1"); ok {
		t.Error("room should be gone after Remove")
	}
	if s.Remove("r1") {
		t.Error("second Remove should return false")
	}
}

func TestRoomStore_RunLoopPublishesTickEvents(t *testing.T) {
	s := NewRoomStore[string, string]()
	room := s.Create("r1", "x")
	ch := room.Hub().Subscribe()

	var ticks atomic.Int32
	s.RunLoop("r1", func() string { return "x" }, func(state string, now time.Time) (time.Time, []string, bool) {
		if ticks.Add(1) > 2 {
			return time.Time{}, nil, true
		}
		return now.Add(5 * time.Millisecond), []string{state}, false
	})

	for i := 0; i < 2; i++ {
		select {
		case got := <-ch:
			if got != "x" {
				t.Errorf("got %q, want x", got)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tick event")
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Running("r1") {
		if time.Now().After(deadline) {
			t.Fatal("loop did not stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoomStore_WakeRecomputes(t *testing.T) {
	s := NewRoomStore[string, string]()
	s.Create("r1", "x")

	var ticks atomic.Int32
	s.RunLoop("r1", func() string { return "x" }, func(string, time.Time) (time.Time, []string, bool) {
		ticks.Add(1)
		return time.Now().Add(time.Hour), nil, false
	})
	defer s.Remove("r1")

	waitFor(t, func() bool { return ticks.Load() >= 1 })
	s.Wake("r1")
	waitFor(t, func() bool { return ticks.Load() >= 2 })
}

func TestRoomStore_RunLoopAfterRemove(t *testing.T) {
	s := NewRoomStore[string, string]()
	s.Create("r1", "x")

	idle := func(ticks *atomic.Int32) TickFunc[string, string] {
		return func(string, time.Time) (time.Time, []string, bool) {
			ticks.Add(1)
			return time.Now().Add(time.Hour), nil, false
		}
	}
	var first, second atomic.Int32
	s.RunLoop("r1", func() string { return "x" }, idle(&first))
	waitFor(t, func() bool { return first.Load() >= 1 })

	s.Remove("r1")
	if s.Running("r1") {
		t.Error("loop should be forgotten by Remove")
	}
	s.Create("r1", "y")
	s.RunLoop("r1", func() string { return "y" }, idle(&second))
	defer s.Remove("r1")
	waitFor(t, func() bool { return second.Load() >= 1 })

	// Give the cancelled loop time to run its cleanup.
	time.Sleep(20 * time.Millisecond)
	if !s.Running("r1") {
		t.Fatal("restarted loop lost its entry")
	}
	s.Wake("r1")
	waitFor(t, func() bool { return second.Load() >= 2 })
	if got := first.Load(); got != 1 {
		t.Errorf("removed loop ticked %d times, want 1", got)
	}
}

func TestRoomStore_Wake_NoPanicWhenNoLoop(t *testing.T) {
	s := NewRoomStore[string, string]()
	s.Wake("nonexistent")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
