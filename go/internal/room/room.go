package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/session"
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhasePaused  Phase = "paused"
	PhaseVictory Phase = "victory"
	PhaseDefeat  Phase = "defeat"
)

type Role string

const (
	RoleDefuser Role = "defuser"
	RoleReader  Role = "reader"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleDefuser, RoleReader:
		return Role(s), true
	}
	return "", false
}

const maxNameLength = 20

type Player struct {
	ID          string
	Name        string
	Role        Role
	IsReady     bool
	IsConnected bool
	JoinedAt    time.Time
}

// Room is one lobby and, once started, its game. Every field is guarded by mu.
type Room struct {
	mu sync.Mutex

	Code        string
	Players     []*Player
	Difficulty  string
	Phase       Phase
	HostID      string
	Game        *session.Session
	Leaderboard []LeaderboardEntry
	CreatedAt   time.Time

	// pausedDefuserID is the defuser whose departure paused the game.
	pausedDefuserID string
	timer           timerSlot
	closed          bool
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) removePlayer(id string) {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return
		}
	}
}

func (r *Room) defuser() *Player {
	for _, p := range r.Players {
		if p.Role == RoleDefuser {
			return p
		}
	}
	return nil
}

func (r *Room) connectedIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsConnected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) connectedCount(role Role) int {
	n := 0
	for _, p := range r.Players {
		if p.IsConnected && (role == "" || p.Role == role) {
			n++
		}
	}
	return n
}

// electHost hands hostship to the first connected player, or the first player at all.
func (r *Room) electHost() {
	if p := r.player(r.HostID); p != nil && p.IsConnected {
		return
	}
	for _, p := range r.Players {
		if p.IsConnected {
			r.HostID = p.ID
			return
		}
	}
	if len(r.Players) > 0 {
		r.HostID = r.Players[0].ID
	}
}

func (r *Room) clearReady() {
	for _, p := range r.Players {
		p.IsReady = false
	}
}

// startBlocker returns why the game cannot start, or "" if it can.
func (r *Room) startBlocker() string {
	switch {
	case r.Phase != PhaseLobby:
		return "the game has already started"
	case len(r.Players) < 2:
		return "need at least 2 players"
	}
	defusers := 0
	for _, p := range r.Players {
		if p.Role == RoleDefuser {
			defusers++
			if !p.IsConnected {
				return "the defuser is disconnected"
			}
		}
	}
	switch {
	case defusers == 0:
		return "someone must be the defuser"
	case defusers > 1:
		return "only one player can be the defuser"
	case r.connectedCount(RoleReader) == 0:
		return "need at least one connected reader"
	}
	for _, p := range r.Players {
		if !p.IsReady {
			return p.Name + " is not ready"
		}
	}
	return ""
}

type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	IsReady     bool   `json:"isReady"`
	IsConnected bool   `json:"isConnected"`
	IsHost      bool   `json:"isHost"`
}

// View is a self-contained copy of a room taken under its lock.
type View struct {
	Code               string          `json:"code"`
	Players            []PlayerView    `json:"players"`
	Difficulty         string          `json:"difficulty"`
	Phase              Phase           `json:"phase"`
	HostID             string          `json:"hostId"`
	GameState          json.RawMessage `json:"gameState"`
	CanStart           bool            `json:"canStart"`
	StartBlockedReason string          `json:"startBlockedReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func (r *Room) view() View {
	v := View{
		Code:       r.Code,
		Players:    make([]PlayerView, 0, len(r.Players)),
		Difficulty: r.Difficulty,
		Phase:      r.Phase,
		HostID:     r.HostID,
		GameState:  r.gameStateJSON(),
		CreatedAt:  r.CreatedAt,
	}
	for _, p := range r.Players {
		v.Players = append(v.Players, PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Role:        p.Role,
			IsReady:     p.IsReady,
			IsConnected: p.IsConnected,
			IsHost:      p.ID == r.HostID,
		})
	}
	v.StartBlockedReason = r.startBlocker()
	v.CanStart = v.StartBlockedReason == ""
	return v
}

func (r *Room) gameStateJSON() json.RawMessage {
	if r.Game == nil {
		return json.RawMessage("null")
	}
	return mustMarshal(r.Game)
}

// Summary is the short form used by room listings.
type Summary struct {
	Code             string    `json:"code"`
	Phase            Phase     `json:"phase"`
	Difficulty       string    `json:"difficulty"`
	Players          int       `json:"players"`
	ConnectedPlayers int       `json:"connectedPlayers"`
	TimeRemaining    *int      `json:"timeRemaining,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (r *Room) summary() Summary {
	s := Summary{
		Code:             r.Code,
		Phase:            r.Phase,
		Difficulty:       r.Difficulty,
		Players:          len(r.Players),
		ConnectedPlayers: r.connectedCount(""),
		CreatedAt:        r.CreatedAt,
	}
	if r.Game != nil {
		t := r.Game.TimeRemaining
		s.TimeRemaining = &t
	}
	return s
}
