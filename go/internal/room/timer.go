package room

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// countdown is one running per-second ticker for a room.
type countdown struct {
	ticker clockwork.Ticker
	stop   chan struct{}
}

// timerSlot holds at most one countdown. The only way to install a countdown is replace,
// which stops the previous one first, so a room can never have two running tickers.
type timerSlot struct {
	current *countdown
}

func (s *timerSlot) replace(next *countdown) {
	s.cancel()
	s.current = next
}

func (s *timerSlot) cancel() {
	if s.current == nil {
		return
	}
	s.current.ticker.Stop()
	close(s.current.stop)
	s.current = nil
}

func (s *timerSlot) running() bool {
	return s.current != nil
}

// is reports whether c is still the installed countdown. Ticks from a replaced countdown are ignored.
func (s *timerSlot) is(c *countdown) bool {
	return s.current == c
}

// startTimer installs a fresh one-second countdown for r. Caller holds r.mu.
func (m *Manager) startTimer(r *Room) {
	c := &countdown{
		ticker: m.clock.NewTicker(time.Second),
		stop:   make(chan struct{}),
	}
	if r.timer.running() {
		log.Debug().Str("room_code", r.Code).Msg("replaced existing timer")
	}
	r.timer.replace(c)

	go func() {
		for {
			select {
			case <-c.stop:
				return
			case <-c.ticker.Chan():
				m.tick(r, c)
			}
		}
	}()
}

// tick applies one second to the room's game if c is still its countdown.
func (m *Manager) tick(r *Room, c *countdown) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.timer.is(c) || r.Phase != PhasePlaying || r.Game == nil {
		return
	}
	ended := r.Game.Tick()
	m.notifyAll(r, newEvent(EventGameStateUpdated, r.Game))
	if ended {
		log.Info().Str("room_code", r.Code).Msg("timer expired")
		m.finishGame(r, "timer expired")
	}
}
