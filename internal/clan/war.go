// internal/clan/war.go
package clan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/geoduel-gg/geoduel/internal/models"
)

// RosterSize is the fixed number of players each clan fields in a war.
const RosterSize = 5

// Reward deltas applied to the clan rows when a war reaches a terminal state.
const (
	winnerRepDelta    = 10
	winnerXPDelta     = 50
	loserRepDelta     = -5
	loserXPDelta      = 10
	declaimerRepDelta = -10
	declaimerXPDelta  = -25
)

var (
	ErrWarNotFound    = errors.New("war not found")
	ErrNotParticipant = errors.New("user is not in this war")
	ErrWrongClan      = errors.New("clan is not a side of this war")
	ErrRosterSize     = errors.New("roster must have exactly 5 players")
	ErrWarNotPending  = errors.New("war is not pending")
)

// WarStore is the durable war/clan surface the controller needs.
// UpdateProgress writes the participants document and the running aggregate
// scores together.
type WarStore interface {
	GetWar(ctx context.Context, id int64) (*models.ClanWar, error)
	UpdateProgress(ctx context.Context, warID int64, p models.WarParticipants, score1, score2 int) error
	StartWar(ctx context.Context, warID int64) error
	FinishWar(ctx context.Context, warID int64, status string, score1, score2 int, winnerClanID int64) error
	ApplyOutcome(ctx context.Context, clanID int64, repDelta, xpDelta, wonDelta, lostDelta int) error
}

// UserReader resolves XP for roster ordering.
type UserReader interface {
	GetUsers(ctx context.Context, ids []int64) ([]*models.User, error)
}

// WarLobbyCreator builds the solo-mode lobby a war participant plays in.
type WarLobbyCreator interface {
	CreateWarLobby(ctx context.Context, hostID, warID int64) (*models.Lobby, error)
}

// WarService orchestrates clan wars: roster collection, pair formation,
// duel lobby spawning, score fan-in, and final settlement. Score submissions
// are serialized per war so near-simultaneous pair finishes cannot lose
// updates.
type WarService struct {
	store   WarStore
	users   UserReader
	lobbies WarLobbyCreator
	log     logrus.FieldLogger

	mu       sync.Mutex
	warLocks map[int64]*sync.Mutex
}

func NewWarService(store WarStore, users UserReader, lobbies WarLobbyCreator, log logrus.FieldLogger) *WarService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WarService{
		store:    store,
		users:    users,
		lobbies:  lobbies,
		log:      log,
		warLocks: make(map[int64]*sync.Mutex),
	}
}

func (s *WarService) warLock(warID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.warLocks[warID]
	if !ok {
		l = &sync.Mutex{}
		s.warLocks[warID] = l
	}
	return l
}

// SetParticipants stores one side's roster. The moment both sides hold
// exactly five players the pairs are built, once, by zipping the XP-sorted
// rosters, and the war goes ongoing.
func (s *WarService) SetParticipants(ctx context.Context, warID, clanID int64, players []int64) error {
	if len(players) != RosterSize {
		return ErrRosterSize
	}

	l := s.warLock(warID)
	l.Lock()
	defer l.Unlock()

	war, err := s.store.GetWar(ctx, warID)
	if err != nil {
		return ErrWarNotFound
	}

	switch clanID {
	case war.Clan1ID:
		war.Participants.Clan1 = players
	case war.Clan2ID:
		war.Participants.Clan2 = players
	default:
		return ErrWrongClan
	}

	bothReady := len(war.Participants.Clan1) == RosterSize &&
		len(war.Participants.Clan2) == RosterSize
	if bothReady && len(war.Participants.Pairs) == 0 {
		side1, err := s.sortByXPDesc(ctx, war.Participants.Clan1)
		if err != nil {
			return err
		}
		side2, err := s.sortByXPDesc(ctx, war.Participants.Clan2)
		if err != nil {
			return err
		}
		for k := 0; k < RosterSize; k++ {
			war.Participants.Pairs = append(war.Participants.Pairs, models.WarPair{
				Clan1:  side1[k],
				Clan2:  side2[k],
				Status: models.WarPending,
			})
		}
		if err := s.store.StartWar(ctx, warID); err != nil {
			return err
		}
	}

	return s.store.UpdateProgress(ctx, warID, war.Participants, war.Clan1Score, war.Clan2Score)
}

func (s *WarService) sortByXPDesc(ctx context.Context, ids []int64) ([]int64, error) {
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].XP != users[j].XP {
			return users[i].XP > users[j].XP
		}
		return users[i].ID < users[j].ID
	})
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out, nil
}

// PlayWar spawns (or reuses the bookkeeping for) the caller's solo duel and
// returns the lobby invite code to connect to.
func (s *WarService) PlayWar(ctx context.Context, warID, userID int64) (string, error) {
	l := s.warLock(warID)
	l.Lock()
	defer l.Unlock()

	war, err := s.store.GetWar(ctx, warID)
	if err != nil {
		return "", ErrWarNotFound
	}
	pair := war.PairFor(userID)
	if pair == nil {
		return "", ErrNotParticipant
	}

	lobby, err := s.lobbies.CreateWarLobby(ctx, userID, warID)
	if err != nil {
		return "", fmt.Errorf("failed to create war lobby: %w", err)
	}

	if pair.LobbyID == 0 {
		pair.LobbyID = lobby.ID
	}
	pair.Status = models.WarOngoing
	if err := s.store.UpdateProgress(ctx, warID, war.Participants, war.Clan1Score, war.Clan2Score); err != nil {
		return "", err
	}
	return lobby.InviteCode, nil
}

// SubmitScore records one side's finished solo score. When both sides of a
// pair are in, the pair is decided (ties go to clan 1) and the clan
// aggregate advances; when the last pair completes, the war is settled.
func (s *WarService) SubmitScore(ctx context.Context, warID, userID int64, score int) error {
	l := s.warLock(warID)
	l.Lock()
	defer l.Unlock()

	war, err := s.store.GetWar(ctx, warID)
	if err != nil {
		return ErrWarNotFound
	}
	pair := war.PairFor(userID)
	if pair == nil {
		return ErrNotParticipant
	}

	switch userID {
	case pair.Clan1:
		pair.Score1 = &score
	case pair.Clan2:
		pair.Score2 = &score
	}

	if pair.Score1 != nil && pair.Score2 != nil {
		if *pair.Score2 > *pair.Score1 {
			pair.WinnerID = pair.Clan2
			war.Clan2Score++
		} else {
			pair.WinnerID = pair.Clan1
			war.Clan1Score++
		}
		pair.Status = models.WarCompleted
	}

	if err := s.store.UpdateProgress(ctx, warID, war.Participants, war.Clan1Score, war.Clan2Score); err != nil {
		return err
	}

	allDone := len(war.Participants.Pairs) == RosterSize
	for i := range war.Participants.Pairs {
		if war.Participants.Pairs[i].Status != models.WarCompleted {
			allDone = false
			break
		}
	}
	if !allDone {
		return nil
	}

	winnerClan, loserClan := war.Clan1ID, war.Clan2ID
	if war.Clan2Score > war.Clan1Score {
		winnerClan, loserClan = war.Clan2ID, war.Clan1ID
	}
	if err := s.store.FinishWar(ctx, warID, models.WarCompleted, war.Clan1Score, war.Clan2Score, winnerClan); err != nil {
		return err
	}
	s.reward(ctx, winnerClan, winnerRepDelta, winnerXPDelta, 1, 0)
	s.reward(ctx, loserClan, loserRepDelta, loserXPDelta, 0, 1)
	return nil
}

// Declaim ends a pending war because one side refused to field a roster.
// The refusing clan takes the loss with the harsher penalty.
func (s *WarService) Declaim(ctx context.Context, warID, decliningClanID int64) error {
	l := s.warLock(warID)
	l.Lock()
	defer l.Unlock()

	war, err := s.store.GetWar(ctx, warID)
	if err != nil {
		return ErrWarNotFound
	}
	if war.Status != models.WarPending {
		return ErrWarNotPending
	}

	var winnerClan int64
	switch decliningClanID {
	case war.Clan1ID:
		winnerClan = war.Clan2ID
	case war.Clan2ID:
		winnerClan = war.Clan1ID
	default:
		return ErrWrongClan
	}

	if err := s.store.FinishWar(ctx, warID, models.WarDeclaimed, 0, 0, winnerClan); err != nil {
		return err
	}
	s.reward(ctx, winnerClan, winnerRepDelta, winnerXPDelta, 1, 0)
	s.reward(ctx, decliningClanID, declaimerRepDelta, declaimerXPDelta, 0, 1)
	return nil
}

// reward applies the outcome deltas to one clan's row, best effort.
func (s *WarService) reward(ctx context.Context, clanID int64, repDelta, xpDelta, won, lost int) {
	if err := s.store.ApplyOutcome(ctx, clanID, repDelta, xpDelta, won, lost); err != nil {
		s.log.WithError(err).WithField("clan", clanID).Error("failed to apply war outcome")
	}
}
