package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fishbowl/internal/archive"
	"fishbowl/internal/game"
	"fishbowl/pkg/realtime"
)

const (
	persistTimeout = 2 * time.Second
	// idleWake is how often the turn loop of a room that is not playing rechecks.
	idleWake = time.Minute
)

var ErrRoomNotFound = fmt.Errorf("room %w", game.ErrNotFound)

type Options struct {
	Snapshots SnapshotStore
	// Archive receives final results. Nil disables archiving.
	Archive archive.Repository
	Logger  zerolog.Logger
	// Turn seeds the turn settings of new sessions.
	Turn game.TurnSettings
	Now  func() time.Time
}

// Store holds rooms on top of realtime.RoomStore: one broadcaster and one
// turn-expiry loop per room, and snapshot persistence behind them.
type Store struct {
	rooms   *realtime.RoomStore[*Room, game.SessionSnapshot]
	snaps   SnapshotStore
	archive archive.Repository
	log     zerolog.Logger
	turn    game.TurnSettings
	now     func() time.Time

	restoreMu sync.Mutex
}

func NewStore(opts Options) *Store {
	if opts.Snapshots == nil {
		opts.Snapshots = NewMemorySnapshots()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Turn.Duration == 0 {
		opts.Turn = game.DefaultTurnSettings()
	}
	return &Store{
		rooms:   realtime.NewRoomStore[*Room, game.SessionSnapshot](),
		snaps:   opts.Snapshots,
		archive: opts.Archive,
		log:     opts.Logger,
		turn:    opts.Turn,
		now:     opts.Now,
	}
}

// Create starts a new session in its own room.
func (s *Store) Create(ctx context.Context) (*Room, error) {
	session := game.NewSession(game.Config{Turn: s.turn})
	if err := s.snaps.Save(ctx, session.Snapshot()); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	r := s.register(session)
	s.log.Info().Str("session", r.ID()).Msg("session created")
	return r, nil
}

// Get returns a live room, restoring it from the snapshot store if needed.
func (s *Store) Get(ctx context.Context, id string) (*Room, error) {
	if room, ok := s.rooms.Get(id); ok {
		return room.State, nil
	}
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()
	if room, ok := s.rooms.Get(id); ok {
		return room.State, nil
	}

	snap, err := s.snaps.Load(ctx, id)
	if errors.Is(err, ErrNoSnapshot) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	session, err := game.RestoreSession(snap, game.Config{})
	if err != nil {
		return nil, fmt.Errorf("restore room %s: %w", id, err)
	}
	r := s.register(session)
	s.log.Info().Str("session", id).Uint64("version", snap.Version).Msg("session restored")
	return r, nil
}

func (s *Store) register(session *game.Session) *Room {
	r := &Room{session: session, lastActive: s.now()}
	session.Watch(observer{store: s, room: r})
	s.rooms.Create(session.ID(), r)
	if session.Kind() != game.PhaseFinalResults {
		s.rooms.RunLoop(session.ID(), func() *Room { return r }, s.tick)
	}
	return r
}

// Do applies a command to the room's session.
func (s *Store) Do(ctx context.Context, id string, cmd Command) (Result, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	r.mu.Lock()
	now := s.now()
	r.lastActive = now
	created, err := cmd.Apply(r.session, now)
	version := r.session.Version()
	r.mu.Unlock()
	if err != nil {
		s.log.Debug().Err(err).Str("session", id).Str("command", string(cmd.Type)).Msg("command rejected")
		return Result{Version: version}, err
	}
	s.rooms.Wake(id)
	return Result{ID: created, Version: version}, nil
}

// Apply merges a snapshot produced by another peer into the room.
func (s *Store) Apply(ctx context.Context, id string, snap game.SessionSnapshot) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.lastActive = s.now()
	err = r.session.ApplySnapshot(snap)
	r.mu.Unlock()
	if err != nil {
		s.log.Debug().Err(err).Str("session", id).Msg("snapshot rejected")
		return err
	}
	s.rooms.Wake(id)
	return nil
}

// Subscribe streams every snapshot the room publishes. The channel is closed
// when the room is removed.
func (s *Store) Subscribe(ctx context.Context, id string) (<-chan game.SessionSnapshot, func(), error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	hub, ok := s.rooms.Broadcaster(id)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	ch := hub.Subscribe()
	return ch, func() { hub.Unsubscribe(ch) }, nil
}

// Remove closes the room and forgets its stored snapshot.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.rooms.Remove(id)
	if err := s.snaps.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove room %s: %w", id, err)
	}
	s.log.Info().Str("session", id).Msg("session removed")
	return nil
}

// Prune evicts rooms idle for longer than idle with nobody listening. Their
// snapshots stay in storage, so a later request restores them.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	n := 0
	for _, id := range s.rooms.IDs() {
		room, ok := s.rooms.Get(id)
		if !ok || room.State.idleSince().After(cutoff) || room.Hub().Len() > 0 {
			continue
		}
		s.rooms.Remove(id)
		n++
	}
	if n > 0 {
		s.log.Info().Int("rooms", n).Msg("pruned idle rooms")
	}
	return n
}

func (s *Store) Len() int {
	return s.rooms.Len()
}

// Close stops every turn loop.
func (s *Store) Close() {
	s.rooms.Stop()
}

// tick expires the running turn once its deadline passes and tells the loop
// when to look again.
func (s *Store) tick(r *Room, _ time.Time) (time.Time, []game.SessionSnapshot, bool) {
	now := s.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Tick(now)
	if r.session.Kind() == game.PhaseFinalResults {
		return time.Time{}, nil, true
	}
	if deadline, ok := r.session.Deadline(); ok {
		return deadline, nil, false
	}
	return now.Add(idleWake), nil, false
}
