// internal/models/clan.go
package models

import "time"

type Clan struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	OwnerID     int64     `json:"owner_id"`
	Members     []int64   `json:"members"`
	MemberCount int       `json:"member_count"`
	Rank        string    `json:"rank"`
	XP          int       `json:"xp"`
	Reputation  int       `json:"reputation"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	WarsWon     int       `json:"wars_won"`
	WarsLost    int       `json:"wars_lost"`
	WarsTotal   int       `json:"wars_total"`
}

// Clan war lifecycle states.
const (
	WarPending   = "pending"
	WarOngoing   = "ongoing"
	WarCompleted = "completed"
	WarDeclaimed = "declaimed"
)

// WarPair is one duel slot inside a war: one player from each clan, matched
// by XP rank. LobbyID is zero until the pair's duel lobby is created; scores
// are nil until submitted.
type WarPair struct {
	Clan1    int64  `json:"clan_1"`
	Clan2    int64  `json:"clan_2"`
	Status   string `json:"status"`
	Score1   *int   `json:"clan_1_score"`
	Score2   *int   `json:"clan_2_score"`
	LobbyID  int64  `json:"lobby_id"`
	WinnerID int64  `json:"winner"`
}

// WarParticipants is the JSON document stored on a war row. Pairs are built
// exactly once, when both rosters reach five players.
type WarParticipants struct {
	Clan1 []int64   `json:"clan_1"`
	Clan2 []int64   `json:"clan_2"`
	Pairs []WarPair `json:"pairs"`
}

type ClanWar struct {
	ID              int64           `json:"id"`
	Clan1ID         int64           `json:"clan_1_id"`
	Clan2ID         int64           `json:"clan_2_id"`
	Rounds          int             `json:"rounds"`
	Status          string          `json:"status"`
	Clan1Score      int             `json:"clan_1_score"`
	Clan2Score      int             `json:"clan_2_score"`
	WinnerClanID    int64           `json:"winner_clan_id"`
	Participants    WarParticipants `json:"participants"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	CreatedByUserID int64           `json:"created_by_user_id"`
}

// PairFor returns the pair containing the given user, or nil.
func (w *ClanWar) PairFor(userID int64) *WarPair {
	for i := range w.Participants.Pairs {
		p := &w.Participants.Pairs[i]
		if p.Clan1 == userID || p.Clan2 == userID {
			return p
		}
	}
	return nil
}
