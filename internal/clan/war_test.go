package clan

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoduel-gg/geoduel/internal/models"
)

type memWarStore struct {
	mu       sync.Mutex
	wars     map[int64]*models.ClanWar
	outcomes map[int64][4]int // clan -> rep, xp, won, lost
}

func newMemWarStore(wars ...*models.ClanWar) *memWarStore {
	s := &memWarStore{
		wars:     make(map[int64]*models.ClanWar),
		outcomes: make(map[int64][4]int),
	}
	for _, w := range wars {
		s.wars[w.ID] = w
	}
	return s
}

func (s *memWarStore) GetWar(ctx context.Context, id int64) (*models.ClanWar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wars[id]
	if !ok {
		return nil, ErrWarNotFound
	}
	cp := *w
	cp.Participants.Clan1 = append([]int64(nil), w.Participants.Clan1...)
	cp.Participants.Clan2 = append([]int64(nil), w.Participants.Clan2...)
	cp.Participants.Pairs = append([]models.WarPair(nil), w.Participants.Pairs...)
	return &cp, nil
}

func (s *memWarStore) UpdateProgress(ctx context.Context, warID int64, p models.WarParticipants, score1, score2 int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wars[warID]
	w.Participants = p
	w.Clan1Score = score1
	w.Clan2Score = score2
	return nil
}

func (s *memWarStore) StartWar(ctx context.Context, warID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wars[warID].Status = models.WarOngoing
	return nil
}

func (s *memWarStore) FinishWar(ctx context.Context, warID int64, status string, score1, score2 int, winnerClanID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wars[warID]
	w.Status = status
	w.Clan1Score = score1
	w.Clan2Score = score2
	w.WinnerClanID = winnerClanID
	return nil
}

func (s *memWarStore) ApplyOutcome(ctx context.Context, clanID int64, repDelta, xpDelta, wonDelta, lostDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.outcomes[clanID]
	o[0] += repDelta
	o[1] += xpDelta
	o[2] += wonDelta
	o[3] += lostDelta
	s.outcomes[clanID] = o
	return nil
}

type memUserReader struct {
	xp map[int64]int
}

func (r *memUserReader) GetUsers(ctx context.Context, ids []int64) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.User{ID: id, XP: r.xp[id]})
	}
	return out, nil
}

type memWarLobbyCreator struct {
	mu     sync.Mutex
	nextID int64
}

func (c *memWarLobbyCreator) CreateWarLobby(ctx context.Context, hostID, warID int64) (*models.Lobby, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return &models.Lobby{
		ID: c.nextID, InviteCode: "war-lobby", HostID: hostID,
		Mode: models.ModeClanWar, WarID: warID,
	}, nil
}

func pendingWar() *models.ClanWar {
	return &models.ClanWar{ID: 1, Clan1ID: 10, Clan2ID: 20, Rounds: 5, Status: models.WarPending}
}

func warService(store *memWarStore, users *memUserReader) *WarService {
	if users == nil {
		users = &memUserReader{xp: map[int64]int{}}
	}
	return NewWarService(store, users, &memWarLobbyCreator{}, nil)
}

func TestSetParticipantsBuildsPairsByXP(t *testing.T) {
	store := newMemWarStore(pendingWar())
	users := &memUserReader{xp: map[int64]int{
		1: 500, 2: 900, 3: 100, 4: 700, 5: 300, // clan 10
		6: 50, 7: 1000, 8: 600, 9: 400, 10: 200, // clan 20
	}}
	s := warService(store, users)
	ctx := context.Background()

	require.NoError(t, s.SetParticipants(ctx, 1, 10, []int64{1, 2, 3, 4, 5}))

	w, _ := store.GetWar(ctx, 1)
	assert.Empty(t, w.Participants.Pairs, "pairs must not form before both rosters are in")
	assert.Equal(t, models.WarPending, w.Status)

	require.NoError(t, s.SetParticipants(ctx, 1, 20, []int64{6, 7, 8, 9, 10}))

	w, _ = store.GetWar(ctx, 1)
	require.Len(t, w.Participants.Pairs, RosterSize)
	assert.Equal(t, models.WarOngoing, w.Status)

	// both sides zipped in descending XP order
	wantSide1 := []int64{2, 4, 1, 5, 3}
	wantSide2 := []int64{7, 8, 9, 10, 6}
	for k, p := range w.Participants.Pairs {
		assert.Equal(t, wantSide1[k], p.Clan1, "pair %d side 1", k)
		assert.Equal(t, wantSide2[k], p.Clan2, "pair %d side 2", k)
		assert.Equal(t, models.WarPending, p.Status)
		assert.Zero(t, p.LobbyID)
	}

	// participant sets are disjoint across the pair list
	seen := map[int64]bool{}
	for _, p := range w.Participants.Pairs {
		assert.False(t, seen[p.Clan1])
		assert.False(t, seen[p.Clan2])
		seen[p.Clan1], seen[p.Clan2] = true, true
	}
}

func TestSetParticipantsValidation(t *testing.T) {
	store := newMemWarStore(pendingWar())
	s := warService(store, nil)
	ctx := context.Background()

	err := s.SetParticipants(ctx, 1, 10, []int64{1, 2, 3})
	assert.ErrorIs(t, err, ErrRosterSize)

	err = s.SetParticipants(ctx, 1, 99, []int64{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, ErrWrongClan)

	err = s.SetParticipants(ctx, 404, 10, []int64{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, ErrWarNotFound)
}

func readyWar(t *testing.T, store *memWarStore, s *WarService) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SetParticipants(ctx, 1, 10, []int64{1, 2, 3, 4, 5}))
	require.NoError(t, s.SetParticipants(ctx, 1, 20, []int64{6, 7, 8, 9, 10}))
}

func TestPlayWarCreatesLobbyOnce(t *testing.T) {
	store := newMemWarStore(pendingWar())
	s := warService(store, nil)
	ctx := context.Background()
	readyWar(t, store, s)

	code, err := s.PlayWar(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "war-lobby", code)

	w, _ := store.GetWar(ctx, 1)
	pair := w.PairFor(1)
	require.NotNil(t, pair)
	assert.Equal(t, models.WarOngoing, pair.Status)
	firstLobby := pair.LobbyID
	assert.NotZero(t, firstLobby)

	// the opposing player gets their own solo lobby; pair bookkeeping keeps
	// the first id
	_, err = s.PlayWar(ctx, 1, pair.Clan2)
	require.NoError(t, err)
	w, _ = store.GetWar(ctx, 1)
	assert.Equal(t, firstLobby, w.PairFor(1).LobbyID)

	_, err = s.PlayWar(ctx, 1, 999)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func submitPair(t *testing.T, s *WarService, w *models.ClanWar, k, score1, score2 int) {
	t.Helper()
	ctx := context.Background()
	p := w.Participants.Pairs[k]
	require.NoError(t, s.SubmitScore(ctx, w.ID, p.Clan1, score1))
	require.NoError(t, s.SubmitScore(ctx, w.ID, p.Clan2, score2))
}

func TestSubmitScoreDecidesPairAndWar(t *testing.T) {
	store := newMemWarStore(pendingWar())
	s := warService(store, nil)
	ctx := context.Background()
	readyWar(t, store, s)

	w, _ := store.GetWar(ctx, 1)

	// clan 1 wins three pairs, including one tie in its favor
	submitPair(t, s, w, 0, 4000, 3000)
	submitPair(t, s, w, 1, 2500, 2500) // tie goes to clan 1
	submitPair(t, s, w, 2, 1000, 5000)

	// aggregates must survive between submissions, not just at settlement
	mid, _ := store.GetWar(ctx, 1)
	assert.Equal(t, models.WarOngoing, mid.Status)
	assert.Equal(t, 2, mid.Clan1Score)
	assert.Equal(t, 1, mid.Clan2Score)

	submitPair(t, s, w, 3, 4800, 100)
	submitPair(t, s, w, 4, 0, 9000)

	final, _ := store.GetWar(ctx, 1)
	assert.Equal(t, models.WarCompleted, final.Status)
	assert.Equal(t, 3, final.Clan1Score)
	assert.Equal(t, 2, final.Clan2Score)
	assert.Equal(t, int64(10), final.WinnerClanID)

	// rewards land on the clan rows: winner +10 rep +50 xp wars_won,
	// loser -5 rep +10 xp wars_lost
	assert.Equal(t, [4]int{10, 50, 1, 0}, store.outcomes[10])
	assert.Equal(t, [4]int{-5, 10, 0, 1}, store.outcomes[20])
}

func TestSubmitScoreIsSerializedPerWar(t *testing.T) {
	store := newMemWarStore(pendingWar())
	s := warService(store, nil)
	ctx := context.Background()
	readyWar(t, store, s)

	w, _ := store.GetWar(ctx, 1)

	// both members of every pair submit concurrently; no update may be lost
	var wg sync.WaitGroup
	for _, p := range w.Participants.Pairs {
		for _, uid := range []int64{p.Clan1, p.Clan2} {
			wg.Add(1)
			go func(uid int64) {
				defer wg.Done()
				assert.NoError(t, s.SubmitScore(ctx, 1, uid, int(uid)*100))
			}(uid)
		}
	}
	wg.Wait()

	final, _ := store.GetWar(ctx, 1)
	assert.Equal(t, models.WarCompleted, final.Status)
	assert.Equal(t, RosterSize, final.Clan1Score+final.Clan2Score)
	for _, p := range final.Participants.Pairs {
		assert.Equal(t, models.WarCompleted, p.Status)
		require.NotNil(t, p.Score1)
		require.NotNil(t, p.Score2)
	}
}

func TestDeclaim(t *testing.T) {
	store := newMemWarStore(pendingWar())
	s := warService(store, nil)
	ctx := context.Background()

	require.NoError(t, s.Declaim(ctx, 1, 20))

	w, _ := store.GetWar(ctx, 1)
	assert.Equal(t, models.WarDeclaimed, w.Status)
	assert.Equal(t, int64(10), w.WinnerClanID)

	assert.Equal(t, [4]int{10, 50, 1, 0}, store.outcomes[10])
	assert.Equal(t, [4]int{-10, -25, 0, 1}, store.outcomes[20])

	// a settled war cannot be declaimed again
	assert.ErrorIs(t, s.Declaim(ctx, 1, 10), ErrWarNotPending)
}
