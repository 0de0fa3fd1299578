package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/geoduel-gg/geoduel/internal/models"
)

func GetClanByID(ctx context.Context, id int64) (*models.Clan, error) {
	var c models.Clan
	err := DB.QueryRow(ctx, `
		SELECT id, name, tag, owner_id, rank, xp, reputation, description,
		       created_at, wars_won, wars_lost, wars_total
		FROM clans WHERE id=$1
	`, id).Scan(
		&c.ID, &c.Name, &c.Tag, &c.OwnerID, &c.Rank, &c.XP, &c.Reputation,
		&c.Description, &c.CreatedAt, &c.WarsWon, &c.WarsLost, &c.WarsTotal,
	)
	if err != nil {
		return nil, err
	}

	rows, err := DB.Query(ctx, `SELECT id FROM users WHERE clan_id=$1 ORDER BY xp DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		c.Members = append(c.Members, uid)
	}
	c.MemberCount = len(c.Members)
	return &c, rows.Err()
}

func CreateClan(ctx context.Context, c *models.Clan) error {
	q := `
	INSERT INTO clans (name, tag, owner_id, description)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, q, c.Name, c.Tag, c.OwnerID, c.Description).Scan(&c.ID, &c.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE users SET clan_id=$1, clan_role='owner' WHERE id=$2`, c.ID, c.OwnerID)
		return err
	})
}

func scanWar(row pgx.Row) (*models.ClanWar, error) {
	var w models.ClanWar
	var winner *int64
	var participants []byte
	err := row.Scan(
		&w.ID, &w.Clan1ID, &w.Clan2ID, &w.Rounds, &w.Status,
		&w.Clan1Score, &w.Clan2Score, &winner, &participants,
		&w.CreatedAt, &w.StartedAt, &w.CompletedAt, &w.CreatedByUserID,
	)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		w.WinnerClanID = *winner
	}
	if err := json.Unmarshal(participants, &w.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants for war %d: %w", w.ID, err)
	}
	return &w, nil
}

const warColumns = `id, clan_1_id, clan_2_id, rounds, status,
       clan_1_score, clan_2_score, winner_clan_id, participants,
       created_at, started_at, completed_at, created_by_user_id`

func GetWarByID(ctx context.Context, id int64) (*models.ClanWar, error) {
	q := `SELECT ` + warColumns + ` FROM clan_wars WHERE id=$1`
	return scanWar(DB.QueryRow(ctx, q, id))
}

func CreateWar(ctx context.Context, w *models.ClanWar) error {
	q := `
	INSERT INTO clan_wars (clan_1_id, clan_2_id, rounds, status, created_by_user_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			w.Clan1ID, w.Clan2ID, w.Rounds, w.Status, w.CreatedByUserID,
		).Scan(&w.ID, &w.CreatedAt)
	})
}

// UpdateWarProgress persists the war's rosters, pairs document, and running
// aggregate scores in one write, so a crash between pair decisions cannot
// lose a clan's point.
func UpdateWarProgress(ctx context.Context, warID int64, p models.WarParticipants, score1, score2 int) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE clan_wars SET participants=$1, clan_1_score=$2, clan_2_score=$3 WHERE id=$4
		`, data, score1, score2, warID)
		return err
	})
}

// StartWar flips a pending war to ongoing and stamps started_at.
func StartWar(ctx context.Context, warID int64) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE clan_wars SET status=$1, started_at=$2 WHERE id=$3 AND status=$4
		`, models.WarOngoing, time.Now(), warID, models.WarPending)
		return err
	})
}

// FinishWar records the final scores, winner, and terminal status.
func FinishWar(ctx context.Context, warID int64, status string, score1, score2 int, winnerClanID int64) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE clan_wars
			SET status=$1, clan_1_score=$2, clan_2_score=$3, winner_clan_id=$4, completed_at=$5
			WHERE id=$6
		`, status, score1, score2, winnerClanID, time.Now(), warID)
		return err
	})
}

// ApplyWarOutcome adjusts a clan's reputation, XP, and war counters.
// Reputation and XP may go negative; wars_total always advances, and exactly
// one of won/lost may advance with it.
func ApplyWarOutcome(ctx context.Context, clanID int64, repDelta, xpDelta, wonDelta, lostDelta int) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE clans
			SET reputation = reputation + $1,
			    xp = xp + $2,
			    wars_won = wars_won + $3,
			    wars_lost = wars_lost + $4,
			    wars_total = wars_total + 1
			WHERE id=$5
		`, repDelta, xpDelta, wonDelta, lostDelta, clanID)
		return err
	})
}
