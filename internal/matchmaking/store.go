package matchmaking

import (
	"context"

	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// PGLobbyCreator builds match lobbies in Postgres.
type PGLobbyCreator struct{}

func (PGLobbyCreator) CreateMatchLobby(ctx context.Context, hostID, guestID int64) (string, error) {
	lobby, err := database.CreateLobby(ctx, hostID, game.DuelTimerSec, models.ModeDuel, 0)
	if err != nil {
		return "", err
	}
	if err := database.AddUserToLobby(ctx, lobby.InviteCode, guestID); err != nil {
		return "", err
	}
	return lobby.InviteCode, nil
}
