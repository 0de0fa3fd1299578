// internal/game/store.go
package game

import (
	"context"
	"errors"

	"github.com/geoduel-gg/geoduel/internal/cache"
	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// The production store adapters. Each wraps the package-level database or
// cache functions behind the narrow interfaces the engine consumes, so tests
// can substitute in-memory fakes.

type PGUserStore struct{}

func (PGUserStore) GetUsers(ctx context.Context, ids []int64) ([]*models.User, error) {
	return database.GetUsersByIDs(ctx, ids)
}

func (PGUserStore) AwardDuelXP(ctx context.Context, winnerID, loserID int64) (int, int, error) {
	return database.AwardDuelXP(ctx, winnerID, loserID)
}

func (PGUserStore) UpdateRank(ctx context.Context, id int64, rank string) error {
	return database.UpdateUserRank(ctx, id, rank)
}

func (PGUserStore) UpdateCountryStats(ctx context.Context, id int64, stats map[string]models.CountryStat) error {
	return database.UpdateCountryStats(ctx, id, stats)
}

type PGLobbyStore struct{}

func (PGLobbyStore) GetByCode(ctx context.Context, code string) (*models.Lobby, error) {
	return database.GetLobbyByCode(ctx, code)
}

func (PGLobbyStore) AddUser(ctx context.Context, code string, userID int64) error {
	return database.AddUserToLobby(ctx, code, userID)
}

func (PGLobbyStore) RemoveUser(ctx context.Context, code string, userID int64) error {
	return database.RemoveUserFromLobby(ctx, code, userID)
}

func (PGLobbyStore) Delete(ctx context.Context, code string) error {
	return database.DeleteLobby(ctx, code)
}

type RedisSnapshotStore struct{}

func (RedisSnapshotStore) SetSnapshot(ctx context.Context, code string, data []byte) error {
	return cache.SetGameSnapshot(ctx, code, data)
}

func (RedisSnapshotStore) GetSnapshot(ctx context.Context, code string) ([]byte, error) {
	data, err := cache.GetGameSnapshot(ctx, code)
	if errors.Is(err, cache.ErrNoSnapshot) {
		return nil, nil
	}
	return data, err
}

func (RedisSnapshotStore) DeleteSnapshot(ctx context.Context, code string) error {
	return cache.DeleteGameSnapshot(ctx, code)
}

func (RedisSnapshotStore) MarkDisconnected(ctx context.Context, code string, userID int64) error {
	return cache.MarkDisconnected(ctx, code, userID)
}

func (RedisSnapshotStore) ClearDisconnected(ctx context.Context, code string, userID int64) error {
	return cache.ClearDisconnected(ctx, code, userID)
}

func (RedisSnapshotStore) IsDisconnected(ctx context.Context, code string, userID int64) (bool, error) {
	return cache.IsDisconnected(ctx, code, userID)
}
