// internal/game/events.go
package game

import "github.com/geoduel-gg/geoduel/internal/models"

// Outbound event payloads. Every message on a lobby socket is one of these
// structs; the Type field is the dispatch tag on both directions of the wire.

const (
	EvtPlayerJoined       = "player_joined"
	EvtPlayerLeft         = "player_left"
	EvtPlayerDisconnected = "player_disconnected"
	EvtPlayerReconnected  = "player_reconnected"
	EvtReconnectSuccess   = "reconnect_success"
	EvtGameStarted        = "game_started"
	EvtRoundStarted       = "round_started"
	EvtRoundTimedOut      = "round_timedout"
	EvtRoundEnded         = "round_ended"
	EvtPlayerGuessed      = "player_guessed"
	EvtGameEnded          = "game_ended"
	EvtRankUp             = "rank_up"
	EvtBroadcast          = "broadcast"
	EvtMatchFound         = "match_found"
	EvtRedirect           = "redirect"
)

type PlayerJoinedEvent struct {
	Type    string              `json:"type"`
	Player  models.PlayerInfo   `json:"player"`
	Host    int64               `json:"host"`
	Players []models.PlayerInfo `json:"players"`
}

type PlayerLeftEvent struct {
	Type    string              `json:"type"`
	Player  int64               `json:"player"`
	Players []models.PlayerInfo `json:"players"`
}

type PlayerDisconnectedEvent struct {
	Type   string `json:"type"`
	Player int64  `json:"player"`
}

type PlayerReconnectedEvent struct {
	Type   string `json:"type"`
	Player int64  `json:"player"`
}

// ReconnectState is the mid-round resume snapshot sent only to the player
// who came back.
type ReconnectState struct {
	CurrentRound   int           `json:"current_round"`
	Lat            float64       `json:"lat"`
	Lon            float64       `json:"lon"`
	URL            string        `json:"url"`
	RoundStartTime int64         `json:"roundstart_time"`
	RemainingSec   int           `json:"remaining_timer"`
	HP             map[int64]int `json:"hp"`
	HasGuessed     bool          `json:"has_guessed"`
	GuessedUsers   []int64       `json:"guessed_users"`
}

type ReconnectSuccessEvent struct {
	Type      string              `json:"type"`
	Host      int64               `json:"host"`
	Players   []models.PlayerInfo `json:"players"`
	GameState *ReconnectState     `json:"game_state,omitempty"`
}

type GameStartedEvent struct {
	Type  string        `json:"type"`
	HP    map[int64]int `json:"hp"`
	Timer int           `json:"timer"`
}

type RoundStartedEvent struct {
	Type           string  `json:"type"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	URL            string  `json:"url"`
	Timer          int     `json:"timer"`
	RoundStartTime int64   `json:"RoundStartTime"`
}

type RoundTimedOutEvent struct {
	Type       string        `json:"type"`
	HP         map[int64]int `json:"hp"`
	NumGuesses int           `json:"num_guesses"`
}

type RoundEndedEvent struct {
	Type    string        `json:"type"`
	Winner  int64         `json:"winner"`
	Damage  int           `json:"damage"`
	HP      map[int64]int `json:"hp"`
	Results []Guess       `json:"results"`
	Lat     float64       `json:"lat"`
	Lon     float64       `json:"lon"`
}

// SoloRoundEndedEvent is the clan-war variant: no opponent, a running score.
type SoloRoundEndedEvent struct {
	Type       string  `json:"type"`
	Points     int     `json:"points"`
	TotalScore int     `json:"total_score"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

type PlayerGuessedEvent struct {
	Type   string `json:"type"`
	Player int64  `json:"player"`
}

type GameEndedEvent struct {
	Type           string              `json:"type"`
	Winner         int64               `json:"winner"`
	TotalDistances map[int64]float64   `json:"total_distances"`
	Players        []models.PlayerInfo `json:"players"`
}

// SoloGameEndedEvent closes a clan-war duel socket with the final score.
type SoloGameEndedEvent struct {
	Type       string `json:"type"`
	TotalScore int    `json:"total_score"`
}

type RankChange struct {
	UserID  int64  `json:"user_id"`
	OldRank string `json:"old_rank"`
	NewRank string `json:"new_rank"`
}

type RankUpEvent struct {
	Type    string       `json:"type"`
	RankUps []RankChange `json:"rank_ups"`
}

type BroadcastEvent struct {
	Type    string `json:"type"`
	Player  string `json:"player"`
	Message string `json:"message"`
}

type MatchFoundEvent struct {
	Type      string            `json:"type"`
	LobbyCode string            `json:"LobbyCode"`
	Opponent  models.PlayerInfo `json:"opponent"`
}

type RedirectEvent struct {
	Type      string `json:"type"`
	LobbyCode string `json:"LobbyCode"`
}
