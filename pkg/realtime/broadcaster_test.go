package realtime

import (
	"testing"
)

// versioned stands in for the session snapshots the rooms publish.
type versioned struct {
	Version uint64
	Phase   string
}

func TestBroadcaster_DeliversInPublishOrder(t *testing.T) {
	b := NewBroadcaster[versioned]()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(versioned{Version: 1, Phase: "team_setup"})
	b.Publish(versioned{Version: 2, Phase: "word_settings"})
	for want := uint64(1); want <= 2; want++ {
		if got := <-ch; got.Version != want {
			t.Errorf("got version %d, want %d", got.Version, want)
		}
	}
}

func TestBroadcaster_FansOutToEverySubscriber(t *testing.T) {
	b := NewBroadcaster[versioned]()
	subs := []chan versioned{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	if b.Len() != len(subs) {
		t.Fatalf("Len %d, want %d", b.Len(), len(subs))
	}

	b.Publish(versioned{Version: 7, Phase: "playing"})
	for i, ch := range subs {
		if got := <-ch; got.Phase != "playing" {
			t.Errorf("subscriber %d got phase %q, want playing", i, got.Phase)
		}
		b.Unsubscribe(ch)
	}
	if b.Len() != 0 {
		t.Errorf("Len %d after unsubscribing all, want 0", b.Len())
	}
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster[versioned]()
	gone := b.Subscribe()
	stays := b.Subscribe()
	defer b.Unsubscribe(stays)

	b.Unsubscribe(gone)
	if _, open := <-gone; open {
		t.Error("channel should be closed after Unsubscribe")
	}
	// A second Unsubscribe of the same channel is harmless.
	b.Unsubscribe(gone)

	b.Publish(versioned{Version: 3})
	if got := <-stays; got.Version != 3 {
		t.Errorf("got version %d, want 3", got.Version)
	}
}

func TestBroadcaster_CloseClosesSubscribers(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.Subscribe()
	if b.Len() != 1 {
		t.Fatalf("Len %d, want 1", b.Len())
	}
	b.Close()
	if _, open := <-ch; open {
		t.Error("channel should be closed after Close")
	}
	late := b.Subscribe()
	if _, open := <-late; open {
		t.Error("subscribing to a closed broadcaster should yield a closed channel")
	}
	b.Publish(1)
	if b.Len() != 0 {
		t.Errorf("Len %d, want 0", b.Len())
	}
}

func TestBroadcaster_PublishDropsForLaggingSubscriber(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	for i := 0; i < 100; i++ {
		b.Publish(i)
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered %d events, want %d", got, cap(ch))
	}
	if first := <-ch; first != 0 {
		t.Errorf("first event %d, want 0", first)
	}
}
