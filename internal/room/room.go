package room

import (
	"context"
	"sync"
	"time"

	"fishbowl/internal/archive"
	"fishbowl/internal/game"
)

// Room owns one session. Every call into the session goes through the room
// lock, which makes the room the single writer the engine expects.
type Room struct {
	mu         sync.Mutex
	session    *game.Session
	lastActive time.Time
}

func (r *Room) ID() string {
	return r.session.ID()
}

// Read calls fn with the session under the room lock. fn must not retain the
// session or mutate it.
func (r *Room) Read(fn func(s *game.Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.session)
}

func (r *Room) Snapshot() game.SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Snapshot()
}

func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// observer publishes and persists every committed change. It runs inside the
// session call, so the room lock is already held.
type observer struct {
	store *Store
	room  *Room
}

func (o observer) PhaseChanged(from, to game.Phase) {
	o.store.log.Debug().
		Str("session", o.room.session.ID()).
		Str("from", string(from.Kind())).
		Str("to", string(to.Kind())).
		Msg("phase changed")
	if to.Kind() == game.PhaseFinalResults {
		o.store.archiveFinal(o.room.session)
	}
}

func (o observer) SnapshotChanged(snap game.SessionSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.store.snaps.Save(ctx, snap); err != nil {
		o.store.log.Error().Err(err).Str("session", snap.SessionID).Uint64("version", snap.Version).Msg("snapshot not persisted")
	}
	o.store.rooms.Publish(snap.SessionID, snap)
}

func (s *Store) archiveFinal(session *game.Session) {
	final, err := session.FinalResults()
	if err != nil {
		return
	}
	log := s.log.With().Str("session", session.ID()).Logger()
	log.Info().Int("winners", len(final.Winners)).Msg("session finished")
	if s.archive == nil {
		return
	}
	result := archive.FromFinal(session.ID(), s.now(), session.Teams(), len(session.Words()), final)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.archive.Save(ctx, result); err != nil {
		log.Error().Err(err).Msg("final results not archived")
	}
}
