// internal/game/state.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/geoduel-gg/geoduel/internal/models"
)

// Starting HP and round timers.
const (
	StartingHP      = 6000
	DuelTimerSec    = 240
	ClanWarTimerSec = 120
	InterRoundDelay = 5
)

// ErrCorruptSnapshot marks an unparseable or schema-violating stored snapshot.
// The caller deletes the key and treats the session as unrecoverable.
var ErrCorruptSnapshot = errors.New("corrupt game snapshot")

// Guess is one submitted answer for a round. Country is copied from the
// round's actual location, not derived from the guessed point.
type Guess struct {
	UserID    int64   `json:"user_id"`
	DistanceM float64 `json:"distance"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Country   string  `json:"country"`
	Points    int     `json:"points"`
}

// GameState is the ephemeral per-lobby game state. It lives in memory for
// the duration of the game and is mirrored to the KV after every mutation so
// a process restart within the TTL can resume.
type GameState struct {
	CurrentIndex  int
	Locations     []models.Location
	Guesses       map[int][]Guess
	HP            map[int64]int
	StartedRounds map[int]struct{}
	EndedRounds   map[int]struct{}
	RoundStartMS  int64
	TimerSec      int
	Mode          string
	WarID         int64
	SoloScore     int
}

// NewGameState initializes state for a lobby's participants and locations.
func NewGameState(lobby *models.Lobby) *GameState {
	s := &GameState{
		Locations:     lobby.Locations,
		Guesses:       make(map[int][]Guess),
		HP:            make(map[int64]int, len(lobby.Users)),
		StartedRounds: make(map[int]struct{}),
		EndedRounds:   make(map[int]struct{}),
		TimerSec:      DuelTimerSec,
		Mode:          lobby.Mode,
		WarID:         lobby.WarID,
	}
	if s.Mode == "" {
		s.Mode = models.ModeDuel
	}
	if s.Mode == models.ModeClanWar {
		s.TimerSec = ClanWarTimerSec
	}
	if lobby.TimerSec > 0 {
		s.TimerSec = lobby.TimerSec
	}
	for _, uid := range lobby.Users {
		s.HP[uid] = StartingHP
	}
	return s
}

// CurrentLocation returns the location for the active round.
func (s *GameState) CurrentLocation() models.Location {
	return s.Locations[s.CurrentIndex]
}

// HasGuessed reports whether the user already guessed in the active round.
func (s *GameState) HasGuessed(userID int64) bool {
	for _, g := range s.Guesses[s.CurrentIndex] {
		if g.UserID == userID {
			return true
		}
	}
	return false
}

// GuessedUsers lists the users who have guessed in the active round.
func (s *GameState) GuessedUsers() []int64 {
	var ids []int64
	for _, g := range s.Guesses[s.CurrentIndex] {
		ids = append(ids, g.UserID)
	}
	return ids
}

// GuessThreshold is the number of guesses that resolves a round early.
func (s *GameState) GuessThreshold() int {
	if s.Mode == models.ModeClanWar {
		return 1
	}
	return 2
}

// snapshotJSON is the stored wire form of GameState. Round indices are
// stringified map keys; the sets are sorted arrays.
type snapshotJSON struct {
	CurrentIndex  int                `json:"current_index"`
	Locations     []models.Location  `json:"locations"`
	Guesses       map[string][]Guess `json:"guesses"`
	HP            map[string]int     `json:"hp"`
	StartedRounds []int              `json:"started_rounds"`
	EndedRounds   []int              `json:"ended_rounds"`
	RoundStartMS  int64              `json:"round_start_time"`
	TimerSec      int                `json:"timer"`
	Mode          string             `json:"mode"`
	WarID         int64              `json:"war_id"`
	SoloScore     int                `json:"solo_score"`
}

// Encode serializes the state for the KV snapshot.
func (s *GameState) Encode() ([]byte, error) {
	snap := snapshotJSON{
		CurrentIndex: s.CurrentIndex,
		Locations:    s.Locations,
		Guesses:      make(map[string][]Guess, len(s.Guesses)),
		HP:           make(map[string]int, len(s.HP)),
		RoundStartMS: s.RoundStartMS,
		TimerSec:     s.TimerSec,
		Mode:         s.Mode,
		WarID:        s.WarID,
		SoloScore:    s.SoloScore,
	}
	for r, gs := range s.Guesses {
		snap.Guesses[strconv.Itoa(r)] = gs
	}
	for uid, hp := range s.HP {
		snap.HP[strconv.FormatInt(uid, 10)] = hp
	}
	for r := range s.StartedRounds {
		snap.StartedRounds = append(snap.StartedRounds, r)
	}
	for r := range s.EndedRounds {
		snap.EndedRounds = append(snap.EndedRounds, r)
	}
	sort.Ints(snap.StartedRounds)
	sort.Ints(snap.EndedRounds)
	return json.Marshal(snap)
}

// DecodeGameState parses a stored snapshot. Any malformed key or JSON yields
// ErrCorruptSnapshot.
func DecodeGameState(data []byte) (*GameState, error) {
	var snap snapshotJSON
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Mode != models.ModeDuel && snap.Mode != models.ModeClanWar {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrCorruptSnapshot, snap.Mode)
	}

	s := &GameState{
		CurrentIndex:  snap.CurrentIndex,
		Locations:     snap.Locations,
		Guesses:       make(map[int][]Guess, len(snap.Guesses)),
		HP:            make(map[int64]int, len(snap.HP)),
		StartedRounds: make(map[int]struct{}, len(snap.StartedRounds)),
		EndedRounds:   make(map[int]struct{}, len(snap.EndedRounds)),
		RoundStartMS:  snap.RoundStartMS,
		TimerSec:      snap.TimerSec,
		Mode:          snap.Mode,
		WarID:         snap.WarID,
		SoloScore:     snap.SoloScore,
	}
	for key, gs := range snap.Guesses {
		r, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: guess key %q", ErrCorruptSnapshot, key)
		}
		s.Guesses[r] = gs
	}
	for key, hp := range snap.HP {
		uid, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: hp key %q", ErrCorruptSnapshot, key)
		}
		s.HP[uid] = hp
	}
	for _, r := range snap.StartedRounds {
		s.StartedRounds[r] = struct{}{}
	}
	for _, r := range snap.EndedRounds {
		s.EndedRounds[r] = struct{}{}
	}
	return s, nil
}
