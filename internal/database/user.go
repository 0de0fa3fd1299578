package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/geoduel-gg/geoduel/internal/models"
)

const userColumns = `id, username, name, avatar, xp, rank, role,
       games_played, games_won, games_lost,
       COALESCE(clan_id, 0), clan_role, country_stats, refresh_token, banned`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var stats []byte
	err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Avatar, &u.XP, &u.Rank, &u.Role,
		&u.GamesPlayed, &u.GamesWon, &u.GamesLost,
		&u.ClanID, &u.ClanRole, &stats, &u.RefreshToken, &u.Banned,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stats, &u.CountryStats); err != nil {
		return nil, fmt.Errorf("failed to decode country_stats for user %d: %w", u.ID, err)
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(DB.QueryRow(ctx, q, id))
}

func GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return scanUser(DB.QueryRow(ctx, q, username))
}

// GetUsersByIDs loads several users in one round trip. The result preserves
// the order of ids; a missing id is an error.
func GetUsersByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := DB.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*models.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("user %d not found", id)
		}
		users = append(users, u)
	}
	return users, nil
}

func CreateUser(ctx context.Context, u *models.User) error {
	if u.CountryStats == nil {
		u.CountryStats = map[string]models.CountryStat{}
	}
	stats, err := json.Marshal(u.CountryStats)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO users (username, name, avatar, xp, rank, role, country_stats)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			u.Username, u.Name, u.Avatar, u.XP, u.Rank, u.Role, stats,
		).Scan(&u.ID)
	})
}

// AwardDuelXP applies end-of-game XP and win/loss counters in one
// transaction. The winner earns 50 XP, the loser 10. Returns the players'
// new XP totals.
func AwardDuelXP(ctx context.Context, winnerID, loserID int64) (winnerXP, loserXP int, err error) {
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE users
			SET xp = xp + 50, games_played = games_played + 1, games_won = games_won + 1
			WHERE id=$1
			RETURNING xp
		`, winnerID).Scan(&winnerXP)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			UPDATE users
			SET xp = xp + 10, games_played = games_played + 1, games_lost = games_lost + 1
			WHERE id=$1
			RETURNING xp
		`, loserID).Scan(&loserXP)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to award duel xp: %w", err)
	}
	return winnerXP, loserXP, nil
}

func UpdateUserRank(ctx context.Context, id int64, rank string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET rank=$1 WHERE id=$2`, rank, id)
		return err
	})
}

// AddUserXP bumps a user's XP by delta (may be negative) and returns the new
// total, floored at zero.
func AddUserXP(ctx context.Context, id int64, delta int) (int, error) {
	var xp int
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			UPDATE users SET xp = GREATEST(xp + $1, 0) WHERE id=$2 RETURNING xp
		`, delta, id).Scan(&xp)
	})
	return xp, err
}

// UpdateCountryStats replaces a user's country histogram.
func UpdateCountryStats(ctx context.Context, id int64, stats map[string]models.CountryStat) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET country_stats=$1 WHERE id=$2`, data, id)
		return err
	})
}

// SetRefreshTokenHash stores the argon2id hash of the user's refresh-token
// jti, replacing any previous session.
func SetRefreshTokenHash(ctx context.Context, id int64, hash string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET refresh_token=$1 WHERE id=$2`, hash, id)
		return err
	})
}

// UpdateUserAvatar sets the avatar URL on the user's profile.
func UpdateUserAvatar(ctx context.Context, id int64, avatar string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET avatar=$1 WHERE id=$2`, avatar, id)
		return err
	})
}

// TopUsersByXP returns the top n users ordered by XP descending.
func TopUsersByXP(ctx context.Context, n int) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY xp DESC, id ASC LIMIT $1`
	rows, err := DB.Query(ctx, q, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
