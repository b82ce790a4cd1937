package room

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/difficulty"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/events"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/session"
)

// Manager is the directory of live rooms and the players in them.
//
// Locking: a room's mu may be held while taking Manager.mu, never the other way round.
type Manager struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	members map[string]string
	names   map[string]string

	engine   *session.Engine
	catalog  *difficulty.Catalog
	clock    clockwork.Clock
	notifier Notifier
	events   events.Sink
	newCode  func() (string, error)
}

type Option func(*Manager)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithEventSink(s events.Sink) Option {
	return func(m *Manager) { m.events = s }
}

// WithCodeGenerator replaces the random room code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.newCode = gen }
}

func NewManager(engine *session.Engine, catalog *difficulty.Catalog, opts ...Option) *Manager {
	m := &Manager{
		rooms:    make(map[string]*Room),
		members:  make(map[string]string),
		names:    make(map[string]string),
		engine:   engine,
		catalog:  catalog,
		clock:    clockwork.NewRealClock(),
		notifier: NopNotifier{},
		events:   events.NopSink{},
		newCode:  GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) notifyAll(r *Room, evt Event) {
	m.notifier.Notify(r.Code, r.connectedIDs(), evt)
}

func (m *Manager) notifyRoom(r *Room) {
	m.notifyAll(r, newEvent(EventRoomUpdated, r.view()))
}

func (m *Manager) emit(r *Room, eventType string, payload any) {
	m.events.Emit(events.New(eventType, r.Code, m.clock.Now(), payload))
}

func defaultName(playerID string) string {
	short := playerID
	if len(short) > 4 {
		short = short[:4]
	}
	return "Agent-" + strings.ToUpper(short)
}

// cleanName trims whitespace and cuts the name to maxNameLength runes.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name, nil
}

func (m *Manager) nameFor(playerID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name, ok := m.names[playerID]; ok {
		return name
	}
	return defaultName(playerID)
}

func (m *Manager) roomOf(playerID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.members[playerID]
	if !ok {
		return nil, false
	}
	r, ok := m.rooms[code]
	return r, ok
}

// withPlayer runs fn with the player's room locked.
func (m *Manager) withPlayer(playerID string, fn func(r *Room, p *Player) error) error {
	r, ok := m.roomOf(playerID)
	if !ok {
		return ErrNotInRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player(playerID)
	if r.closed || p == nil {
		return ErrNotInRoom
	}
	return fn(r, p)
}

// CreateRoom opens a new lobby with the caller as host and defuser. A caller already in a
// room leaves it first.
func (m *Manager) CreateRoom(playerID string) (View, error) {
	if err := m.LeaveRoom(playerID); err != nil && !errors.Is(err, ErrNotInRoom) {
		return View{}, err
	}

	now := m.clock.Now()
	r := &Room{
		Players: []*Player{{
			ID:          playerID,
			Name:        m.nameFor(playerID),
			Role:        RoleDefuser,
			IsConnected: true,
			JoinedAt:    now,
		}},
		Difficulty: m.catalog.Default().Name,
		Phase:      PhaseLobby,
		HostID:     playerID,
		CreatedAt:  now,
	}
	// The room is not reachable yet, so taking its lock before the directory lock is safe.
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := m.register(r, playerID); err != nil {
		return View{}, err
	}

	log.Info().Str("room_code", r.Code).Str("player_id", playerID).Msg("room created")
	m.emit(r, events.TypeRoomCreated, events.RoomCreatedPayload{HostID: playerID, Difficulty: r.Difficulty})
	m.notifyRoom(r)
	return r.view(), nil
}

func (m *Manager) register(r *Room, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range maxCodeAttempts {
		code, err := m.newCode()
		if err != nil {
			return fmt.Errorf("failed to generate room code: %w", err)
		}
		if _, taken := m.rooms[code]; taken {
			continue
		}
		r.Code = code
		m.rooms[code] = r
		m.members[playerID] = code
		return nil
	}
	return ErrCodeSpaceExhausted
}

// JoinRoom adds the caller to a lobby as a reader. A player who is already part of the room
// reconnects instead, in any phase.
func (m *Manager) JoinRoom(code, playerID string) (View, error) {
	code = NormalizeCode(code)
	if current, ok := m.roomOf(playerID); ok && current.Code != code {
		if err := m.LeaveRoom(playerID); err != nil && !errors.Is(err, ErrNotInRoom) {
			return View{}, err
		}
	}

	m.mu.RLock()
	r, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return View{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	if p := r.player(playerID); p != nil {
		m.reconnect(r, p)
		return r.view(), nil
	}
	if r.Phase != PhaseLobby {
		return View{}, ErrGameInProgress
	}

	r.Players = append(r.Players, &Player{
		ID:          playerID,
		Name:        m.nameFor(playerID),
		Role:        RoleReader,
		IsConnected: true,
		JoinedAt:    m.clock.Now(),
	})
	m.mu.Lock()
	m.members[playerID] = code
	m.mu.Unlock()

	log.Info().Str("room_code", code).Str("player_id", playerID).Msg("player joined")
	m.notifyRoom(r)
	return r.view(), nil
}

func (m *Manager) reconnect(r *Room, p *Player) {
	p.IsConnected = true
	m.mu.Lock()
	m.members[p.ID] = r.Code
	m.mu.Unlock()
	r.electHost()

	log.Info().Str("room_code", r.Code).Str("player_id", p.ID).Msg("player reconnected")
	if r.Phase == PhasePaused && p.Role == RoleDefuser && r.pausedDefuserID == p.ID {
		m.resume(r, p, false)
	}
	m.notifyRoom(r)
	if r.Game != nil {
		m.notifyAll(r, newEvent(EventGameStateUpdated, r.Game))
	}
}

// LeaveRoom removes the caller from their room.
func (m *Manager) LeaveRoom(playerID string) error {
	return m.withPlayer(playerID, func(r *Room, p *Player) error {
		wasDefuser := p.Role == RoleDefuser
		r.removePlayer(playerID)
		m.mu.Lock()
		delete(m.members, playerID)
		m.mu.Unlock()
		log.Info().Str("room_code", r.Code).Str("player_id", playerID).Msg("player left")

		if r.connectedCount("") == 0 {
			m.abandon(r, "player left")
			return nil
		}
		if r.HostID == playerID {
			r.electHost()
		}
		if wasDefuser && r.Phase == PhasePlaying {
			m.pause(r, playerID, "defuser left")
		}
		m.notifyRoom(r)
		return nil
	})
}

// Disconnect marks the caller as gone without removing them, so they can reconnect later.
func (m *Manager) Disconnect(playerID string) error {
	return m.withPlayer(playerID, func(r *Room, p *Player) error {
		if !p.IsConnected {
			return nil
		}
		p.IsConnected = false
		log.Info().Str("room_code", r.Code).Str("player_id", playerID).Msg("player disconnected")

		if r.connectedCount("") == 0 {
			m.abandon(r, "all players disconnected")
			return nil
		}
		r.electHost()
		if p.Role == RoleDefuser && r.Phase == PhasePlaying {
			m.pause(r, playerID, "defuser disconnected")
		}
		m.notifyRoom(r)
		return nil
	})
}

// abandon ends a running game in defeat and destroys the room. Caller holds r.mu.
func (m *Manager) abandon(r *Room, reason string) {
	if r.Game != nil && (r.Phase == PhasePlaying || r.Phase == PhasePaused) && r.Game.ForceDefeat() {
		m.finishGame(r, reason)
	}
	m.destroy(r, reason)
}

// destroy closes the room and drops it from the directory. Caller holds r.mu.
func (m *Manager) destroy(r *Room, reason string) {
	r.closed = true
	r.timer.cancel()

	m.mu.Lock()
	delete(m.rooms, r.Code)
	for _, p := range r.Players {
		if m.members[p.ID] == r.Code {
			delete(m.members, p.ID)
		}
	}
	m.mu.Unlock()

	log.Info().Str("room_code", r.Code).Str("reason", reason).Msg("room destroyed")
	m.emit(r, events.TypeRoomDestroyed, events.RoomDestroyedPayload{Reason: reason})
}

// SetName stores the caller's display name and applies it to their current room, if any.
func (m *Manager) SetName(playerID, name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.names[playerID] = name
	m.mu.Unlock()

	err = m.withPlayer(playerID, func(r *Room, p *Player) error {
		p.Name = name
		m.notifyRoom(r)
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotInRoom) {
		return "", err
	}
	return name, nil
}

// SetRole changes the caller's role in the lobby. Taking the defuser role demotes the current defuser.
func (m *Manager) SetRole(playerID string, role Role) error {
	if _, ok := ParseRole(string(role)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return m.withPlayer(playerID, func(r *Room, p *Player) error {
		if r.Phase != PhaseLobby {
			return ErrWrongPhase
		}
		if role == RoleDefuser {
			for _, other := range r.Players {
				if other.ID != p.ID && other.Role == RoleDefuser {
					other.Role = RoleReader
				}
			}
		}
		p.Role = role
		log.Debug().Str("room_code", r.Code).Str("player_id", playerID).Str("role", string(role)).Msg("role changed")
		m.notifyRoom(r)
		return nil
	})
}

func (m *Manager) ToggleReady(playerID string) (bool, error) {
	var ready bool
	err := m.withPlayer(playerID, func(r *Room, p *Player) error {
		if r.Phase != PhaseLobby {
			return ErrWrongPhase
		}
		p.IsReady = !p.IsReady
		ready = p.IsReady
		m.notifyRoom(r)
		return nil
	})
	return ready, err
}

// SetDifficulty switches the room's preset and clears every ready flag.
func (m *Manager) SetDifficulty(playerID, name string) error {
	preset, err := m.catalog.Get(name)
	if err != nil {
		return err
	}
	return m.withPlayer(playerID, func(r *Room, p *Player) error {
		if r.Phase != PhaseLobby {
			return ErrWrongPhase
		}
		r.Difficulty = preset.Name
		r.clearReady()
		log.Debug().Str("room_code", r.Code).Str("difficulty", preset.Name).Msg("difficulty changed")
		m.notifyRoom(r)
		return nil
	})
}

// CanStart reports whether the room's game could start now and, if not, why.
func (m *Manager) CanStart(code string) (bool, string, error) {
	r, err := m.lookup(code)
	if err != nil {
		return false, "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reason := r.startBlocker()
	return reason == "", reason, nil
}

func (m *Manager) lookup(code string) (*Room, error) {
	code = NormalizeCode(code)
	m.mu.RLock()
	r, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r, nil
}

// Room returns a snapshot of one room.
func (m *Manager) Room(code string) (View, error) {
	r, err := m.lookup(code)
	if err != nil {
		return View{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return View{}, fmt.Errorf("%w: %s", ErrRoomNotFound, r.Code)
	}
	return r.view(), nil
}

// RoomOf returns a snapshot of the caller's room.
func (m *Manager) RoomOf(playerID string) (View, error) {
	var v View
	err := m.withPlayer(playerID, func(r *Room, _ *Player) error {
		v = r.view()
		return nil
	})
	return v, err
}

// Rooms lists every live room, oldest first.
func (m *Manager) Rooms() []Summary {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out = append(out, r.summary())
		}
		r.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out
}

// Shutdown stops every room timer.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		r.mu.Lock()
		r.timer.cancel()
		r.mu.Unlock()
	}
	log.Info().Int("rooms", len(rooms)).Msg("room timers stopped")
}
