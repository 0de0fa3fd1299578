// internal/matchmaking/matchmaker.go
package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// Pairing policy.
const (
	MaxXPGap      = 200
	TickInterval  = 3 * time.Second
	RedirectDelay = 2 * time.Second
)

// LobbyCreator builds the duel lobby for a matched pair and returns its
// invite code.
type LobbyCreator interface {
	CreateMatchLobby(ctx context.Context, hostID, guestID int64) (string, error)
}

type entry struct {
	UserID int64
	Conn   game.Sender
	XP     int
	Info   models.PlayerInfo
}

// Matchmaker holds a linear queue of waiting players and pairs them by XP
// proximity on a fixed tick. The queue is mutated only under its mutex, from
// the tick loop and the join/leave entry points.
type Matchmaker struct {
	mu      sync.Mutex
	queue   []entry
	lobbies LobbyCreator
	log     logrus.FieldLogger

	tick          time.Duration
	redirectDelay time.Duration
}

func New(lobbies LobbyCreator, log logrus.FieldLogger) *Matchmaker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Matchmaker{
		lobbies:       lobbies,
		log:           log,
		tick:          TickInterval,
		redirectDelay: RedirectDelay,
	}
}

// Join enqueues a player and returns their 1-based queue position.
// Re-enqueueing replaces the older entry, so a user appears at most once.
func (m *Matchmaker) Join(user *models.User, conn game.Sender) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent := entry{UserID: user.ID, Conn: conn, XP: user.XP, Info: user.Info()}
	for i := range m.queue {
		if m.queue[i].UserID == user.ID {
			m.queue[i] = ent
			return i + 1
		}
	}
	m.queue = append(m.queue, ent)
	return len(m.queue)
}

// Leave removes a player from the queue, if present.
func (m *Matchmaker) Leave(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queue {
		if m.queue[i].UserID == userID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// Len reports the current queue size.
func (m *Matchmaker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Run drives the pairing loop until the context is cancelled.
func (m *Matchmaker) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.matchOnce(ctx)
		}
	}
}

// matchOnce makes at most one match decision. The winning pair is removed
// from the queue inside the critical section, so no other tick or join can
// see either entry again; the slow parts (lobby insert, redirect delay) run
// outside the lock.
func (m *Matchmaker) matchOnce(ctx context.Context) {
	m.mu.Lock()
	var a, b entry
	found := false
	for i := 0; i < len(m.queue) && !found; i++ {
		for j := i + 1; j < len(m.queue); j++ {
			if absInt(m.queue[i].XP-m.queue[j].XP) <= MaxXPGap {
				a, b = m.queue[i], m.queue[j]
				m.queue = append(m.queue[:j], m.queue[j+1:]...)
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				found = true
				break
			}
		}
	}
	m.mu.Unlock()

	if !found {
		return
	}

	code, err := m.lobbies.CreateMatchLobby(ctx, a.UserID, b.UserID)
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"host": a.UserID, "guest": b.UserID,
		}).Error("failed to create match lobby")
		return
	}

	a.Conn.Send(game.MatchFoundEvent{Type: game.EvtMatchFound, LobbyCode: code, Opponent: b.Info})
	b.Conn.Send(game.MatchFoundEvent{Type: game.EvtMatchFound, LobbyCode: code, Opponent: a.Info})

	time.AfterFunc(m.redirectDelay, func() {
		redirect := game.RedirectEvent{Type: game.EvtRedirect, LobbyCode: code}
		a.Conn.Send(redirect)
		b.Conn.Send(redirect)
	})
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
