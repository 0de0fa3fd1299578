package clan

import (
	"context"

	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// PGWarStore backs the war controller with Postgres.
type PGWarStore struct{}

func (PGWarStore) GetWar(ctx context.Context, id int64) (*models.ClanWar, error) {
	return database.GetWarByID(ctx, id)
}

func (PGWarStore) UpdateProgress(ctx context.Context, warID int64, p models.WarParticipants, score1, score2 int) error {
	return database.UpdateWarProgress(ctx, warID, p, score1, score2)
}

func (PGWarStore) StartWar(ctx context.Context, warID int64) error {
	return database.StartWar(ctx, warID)
}

func (PGWarStore) FinishWar(ctx context.Context, warID int64, status string, score1, score2 int, winnerClanID int64) error {
	return database.FinishWar(ctx, warID, status, score1, score2, winnerClanID)
}

func (PGWarStore) ApplyOutcome(ctx context.Context, clanID int64, repDelta, xpDelta, wonDelta, lostDelta int) error {
	return database.ApplyWarOutcome(ctx, clanID, repDelta, xpDelta, wonDelta, lostDelta)
}

// PGUserReader resolves rosters from Postgres.
type PGUserReader struct{}

func (PGUserReader) GetUsers(ctx context.Context, ids []int64) ([]*models.User, error) {
	return database.GetUsersByIDs(ctx, ids)
}

// PGWarLobbyCreator spawns the solo lobby a war participant plays in.
type PGWarLobbyCreator struct{}

func (PGWarLobbyCreator) CreateWarLobby(ctx context.Context, hostID, warID int64) (*models.Lobby, error) {
	return database.CreateLobby(ctx, hostID, game.ClanWarTimerSec, models.ModeClanWar, warID)
}
