package realtime

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Room holds state and a broadcaster for one room.
type Room[T, E any] struct {
	ID    string
	State T
	hub   *Broadcaster[E]
}

// Hub returns the room's broadcaster.
func (r *Room[T, E]) Hub() *Broadcaster[E] {
	return r.hub
}

// RoomStore manages rooms, their broadcasters and their timing loops.
type RoomStore[T, E any] struct {
	mu    sync.RWMutex
	rooms map[string]*Room[T, E]
	loops map[string]*loop
}

type loop struct {
	cancel context.CancelFunc
	wake   chan struct{}
}

// NewRoomStore creates an empty room store.
func NewRoomStore[T, E any]() *RoomStore[T, E] {
	return &RoomStore[T, E]{
		rooms: make(map[string]*Room[T, E]),
		loops: make(map[string]*loop),
	}
}

// Create adds a room with the given id and state, and a new Broadcaster.
func (s *RoomStore[T, E]) Create(id string, state T) *Room[T, E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Room[T, E]{ID: id, State: state, hub: NewBroadcaster[E]()}
	s.rooms[id] = r
	return r
}

// Get returns the room by ID if it exists.
func (s *RoomStore[T, E]) Get(id string) (*Room[T, E], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// IDs lists the rooms in lexical order.
func (s *RoomStore[T, E]) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *RoomStore[T, E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Publish notifies subscribers of the room's broadcaster. Unknown rooms are ignored.
func (s *RoomStore[T, E]) Publish(id string, event E) {
	if r, ok := s.Get(id); ok {
		r.hub.Publish(event)
	}
}

// Broadcaster returns the broadcaster for the room.
func (s *RoomStore[T, E]) Broadcaster(id string) (*Broadcaster[E], bool) {
	r, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return r.hub, true
}

// Remove stops the room's loop, closes its subscribers and forgets it.
func (s *RoomStore[T, E]) Remove(id string) bool {
	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	l := s.loops[id]
	delete(s.loops, id)
	s.mu.Unlock()
	if l != nil {
		l.cancel()
	}
	if ok {
		r.hub.Close()
	}
	return ok
}

// Stop cancels every running loop. Rooms are kept.
func (s *RoomStore[T, E]) Stop() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.loops {
		l.cancel()
	}
}

// TickFunc is called by RunLoop to determine the next wake time and events to publish.
// stop true means exit the loop.
type TickFunc[T, E any] func(state T, now time.Time) (next time.Time, events []E, stop bool)

// RunLoop starts a timing loop for the room. If a loop already exists for id, it is not started again.
func (s *RoomStore[T, E]) RunLoop(id string, getState func() T, tick TickFunc[T, E]) {
	s.mu.Lock()
	if _, ok := s.loops[id]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel, wake: make(chan struct{}, 1)}
	s.loops[id] = l
	s.mu.Unlock()

	go func() {
		defer func() {
			// A loop started after Remove owns the entry by now.
			s.mu.Lock()
			if s.loops[id] == l {
				delete(s.loops, id)
			}
			s.mu.Unlock()
			cancel()
		}()

		for {
			if ctx.Err() != nil {
				return
			}
			state := getState()
			now := time.Now().UTC()
			next, events, stop := tick(state, now)
			if stop {
				return
			}
			for _, e := range events {
				s.Publish(id, e)
			}
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			case <-l.wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		}
	}()
}

// Running reports whether a loop is active for the room.
func (s *RoomStore[T, E]) Running(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loops[id]
	return ok
}

// Wake unblocks the room's loop so it recomputes immediately.
func (s *RoomStore[T, E]) Wake(id string) {
	s.mu.RLock()
	l, ok := s.loops[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
