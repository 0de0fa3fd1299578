// internal/models/lobby.go
package models

// Game modes a lobby can run in.
const (
	ModeDuel    = "duel"
	ModeClanWar = "clan_war"
)

// Lobby represents a row in the lobbies table. The invite code doubles as the
// key for the lobby's ephemeral game state in Redis.
type Lobby struct {
	ID         int64      `json:"id"`
	InviteCode string     `json:"invite_code"`
	HostID     int64      `json:"host_id"`
	TimerSec   int        `json:"timer"`
	Users      []int64    `json:"users"`
	Locations  []Location `json:"locations"`
	Mode       string     `json:"mode,omitempty"`
	WarID      int64      `json:"war_id,omitempty"`
}
