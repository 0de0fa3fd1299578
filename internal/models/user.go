package models

// CountryStat is the close/far guess histogram for a single country.
type CountryStat struct {
	Close int `json:"close"`
	Far   int `json:"far"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	XP       int    `json:"xp"`
	Rank     string `json:"rank"`
	Role     string `json:"role"`

	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`
	GamesLost   int `json:"games_lost"`

	ClanID   int64  `json:"clan_id"`
	ClanRole string `json:"clan_role"`

	// CountryStats maps a country label to its close/far histogram. The
	// country recorded on a guess is the country of the round's actual
	// location, not of the guess.
	CountryStats map[string]CountryStat `json:"country_stats"`

	RefreshToken string `json:"-"`
	Banned       bool   `json:"-"`
}

// PlayerInfo is the public profile shape embedded in lobby events.
type PlayerInfo struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	XP     int    `json:"xp"`
	Rank   string `json:"rank"`
}

// Info projects the public fields of a user.
func (u *User) Info() PlayerInfo {
	return PlayerInfo{
		UserID: u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		XP:     u.XP,
		Rank:   u.Rank,
	}
}
