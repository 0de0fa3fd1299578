// internal/game/session.go
package game

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Sender is one attached endpoint. Send must not block the caller; transport
// failures are the implementation's problem and are only logged.
type Sender interface {
	Send(v interface{})
}

type sessionEntry struct {
	UserID int64
	Conn   Sender
}

type lobbySessions struct {
	players    []sessionEntry
	spectators []Sender
}

// Registry tracks open connections per lobby plus a separate spectator pool.
// It fans events out in the order the state machine produced them and never
// reorders; sends to different connections within one event may interleave.
type Registry struct {
	mu      sync.Mutex
	lobbies map[string]*lobbySessions
}

func NewRegistry() *Registry {
	return &Registry{lobbies: make(map[string]*lobbySessions)}
}

// Attach registers a player connection for a lobby.
func (r *Registry) Attach(code string, userID int64, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		ls = &lobbySessions{}
		r.lobbies[code] = ls
	}
	ls.players = append(ls.players, sessionEntry{UserID: userID, Conn: conn})
}

// Replace swaps the user's stale connection for a fresh one, atomically with
// respect to broadcasts. Used on reconnect.
func (r *Registry) Replace(code string, userID int64, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		ls = &lobbySessions{}
		r.lobbies[code] = ls
	}
	for i := range ls.players {
		if ls.players[i].UserID == userID {
			ls.players[i].Conn = conn
			return
		}
	}
	ls.players = append(ls.players, sessionEntry{UserID: userID, Conn: conn})
}

// Detach removes a specific player connection and reports how many player
// connections remain in the lobby.
func (r *Registry) Detach(code string, conn Sender) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		return 0
	}
	for i := range ls.players {
		if ls.players[i].Conn == conn {
			ls.players = append(ls.players[:i], ls.players[i+1:]...)
			break
		}
	}
	remaining := len(ls.players)
	if remaining == 0 && len(ls.spectators) == 0 {
		delete(r.lobbies, code)
	}
	return remaining
}

// IsAttached reports whether the user currently holds a connection here.
func (r *Registry) IsAttached(code string, userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		return false
	}
	for _, e := range ls.players {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// SpectatorAttach adds a read-only observer to the lobby's spectator pool.
func (r *Registry) SpectatorAttach(code string, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		ls = &lobbySessions{}
		r.lobbies[code] = ls
	}
	ls.spectators = append(ls.spectators, conn)
}

// SpectatorDetach removes an observer connection.
func (r *Registry) SpectatorDetach(code string, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		return
	}
	for i := range ls.spectators {
		if ls.spectators[i] == conn {
			ls.spectators = append(ls.spectators[:i], ls.spectators[i+1:]...)
			break
		}
	}
	if len(ls.players) == 0 && len(ls.spectators) == 0 {
		delete(r.lobbies, code)
	}
}

// Broadcast fans a payload out to every player and spectator in the lobby.
// The connection list is snapshotted under the lock; sends happen outside it
// so a slow or reentrant endpoint cannot stall registry mutations.
func (r *Registry) Broadcast(code string, v interface{}) {
	r.mu.Lock()
	ls := r.lobbies[code]
	if ls == nil {
		r.mu.Unlock()
		return
	}
	conns := make([]Sender, 0, len(ls.players)+len(ls.spectators))
	for _, e := range ls.players {
		conns = append(conns, e.Conn)
	}
	conns = append(conns, ls.spectators...)
	r.mu.Unlock()

	for _, c := range conns {
		c.Send(v)
	}
}

// BroadcastExcept fans a payload out to everyone in the lobby except one
// user. Used for reconnect notices, which the reconnecting player does not
// need to see.
func (r *Registry) BroadcastExcept(code string, exceptUserID int64, v interface{}) {
	r.mu.Lock()
	ls := r.lobbies[code]
	if ls == nil {
		r.mu.Unlock()
		return
	}
	conns := make([]Sender, 0, len(ls.players)+len(ls.spectators))
	for _, e := range ls.players {
		if e.UserID != exceptUserID {
			conns = append(conns, e.Conn)
		}
	}
	conns = append(conns, ls.spectators...)
	r.mu.Unlock()

	for _, c := range conns {
		c.Send(v)
	}
}

// SendTo delivers a payload to a single user's current connection.
func (r *Registry) SendTo(code string, userID int64, v interface{}) {
	r.mu.Lock()
	var conn Sender
	if ls := r.lobbies[code]; ls != nil {
		for _, e := range ls.players {
			if e.UserID == userID {
				conn = e.Conn
				break
			}
		}
	}
	r.mu.Unlock()

	if conn == nil {
		logrus.WithFields(logrus.Fields{"lobby": code, "user": userID}).
			Debug("send_to: no connection for user")
		return
	}
	conn.Send(v)
}

// AttachedUsers returns the user ids with a live connection, in attach order.
func (r *Registry) AttachedUsers(code string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lobbies[code]
	if ls == nil {
		return nil
	}
	ids := make([]int64, 0, len(ls.players))
	for _, e := range ls.players {
		ids = append(ids, e.UserID)
	}
	return ids
}
