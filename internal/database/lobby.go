package database

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/geoduel-gg/geoduel/internal/models"
)

// RoundsPerGame is the number of locations drawn for every lobby.
const RoundsPerGame = 13

// NewInviteCode returns an 8-character URL-safe random code.
func NewInviteCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateLobby inserts a lobby with a fresh invite code and a random draw of
// locations, one per round. The host starts out as the only member.
func CreateLobby(ctx context.Context, hostID int64, timerSec int, mode string, warID int64) (*models.Lobby, error) {
	locs, err := RandomLocations(ctx, RoundsPerGame)
	if err != nil {
		return nil, fmt.Errorf("failed to draw locations: %w", err)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("location catalog is empty")
	}

	code, err := NewInviteCode()
	if err != nil {
		return nil, err
	}

	l := &models.Lobby{
		InviteCode: code,
		HostID:     hostID,
		TimerSec:   timerSec,
		Users:      []int64{hostID},
		Locations:  locs,
		Mode:       mode,
		WarID:      warID,
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var warArg interface{}
		if warID != 0 {
			warArg = warID
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO lobbies (invite_code, host_id, timer_sec, users, mode, war_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, l.InviteCode, l.HostID, l.TimerSec, l.Users, l.Mode, warArg).Scan(&l.ID)
		if err != nil {
			return err
		}
		for i, loc := range locs {
			_, err := tx.Exec(ctx, `
				INSERT INTO lobby_locations (lobby_id, location_id, round) VALUES ($1, $2, $3)
			`, l.ID, loc.ID, i)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert lobby: %w", err)
	}
	return l, nil
}

// GetLobbyByCode fetches a lobby and its round locations by invite code.
func GetLobbyByCode(ctx context.Context, code string) (*models.Lobby, error) {
	var l models.Lobby
	var warID *int64
	err := DB.QueryRow(ctx, `
		SELECT id, invite_code, host_id, timer_sec, users, mode, war_id
		FROM lobbies WHERE invite_code=$1
	`, code).Scan(&l.ID, &l.InviteCode, &l.HostID, &l.TimerSec, &l.Users, &l.Mode, &warID)
	if err != nil {
		return nil, err
	}
	if warID != nil {
		l.WarID = *warID
	}

	rows, err := DB.Query(ctx, `
		SELECT loc.id, loc.lat, loc.lon, loc.region, loc.country
		FROM lobby_locations ll
		JOIN locations loc ON loc.id = ll.location_id
		WHERE ll.lobby_id = $1
		ORDER BY ll.round
	`, l.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.Lat, &loc.Lon, &loc.Region, &loc.Country); err != nil {
			return nil, err
		}
		loc.URL = StreetViewURL(loc.Lat, loc.Lon)
		l.Locations = append(l.Locations, loc)
	}
	return &l, rows.Err()
}

// AddUserToLobby appends a user to the lobby's member array if not present.
func AddUserToLobby(ctx context.Context, code string, userID int64) error {
	q := `
	UPDATE lobbies
	SET users = array_append(users, $1)
	WHERE invite_code=$2 AND NOT ($1 = ANY(users))
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, userID, code)
		return err
	})
}

// RemoveUserFromLobby drops a user from the lobby's member array.
func RemoveUserFromLobby(ctx context.Context, code string, userID int64) error {
	q := `UPDATE lobbies SET users = array_remove(users, $1) WHERE invite_code=$2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, userID, code)
		return err
	})
}

// DeleteLobby removes a lobby row. Round locations cascade.
func DeleteLobby(ctx context.Context, code string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE invite_code=$1`, code)
		return err
	})
}

// GetRandomOpenLobby returns a random duel lobby still waiting for a second
// player, or pgx.ErrNoRows when none is open.
func GetRandomOpenLobby(ctx context.Context) (*models.Lobby, error) {
	var code string
	err := DB.QueryRow(ctx, `
		SELECT invite_code FROM lobbies
		WHERE mode=$1 AND cardinality(users) = 1
		ORDER BY random() LIMIT 1
	`, models.ModeDuel).Scan(&code)
	if err != nil {
		return nil, err
	}
	return GetLobbyByCode(ctx, code)
}
