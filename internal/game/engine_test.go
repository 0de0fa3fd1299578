package game

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoduel-gg/geoduel/internal/geo"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// fakeConn records every payload sent to it.
type fakeConn struct {
	mu     sync.Mutex
	events []interface{}
}

func (c *fakeConn) Send(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, v)
}

func (c *fakeConn) all() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) countType(want string) int {
	n := 0
	for _, ev := range c.all() {
		if eventType(ev) == want {
			n++
		}
	}
	return n
}

func eventType(ev interface{}) string {
	switch e := ev.(type) {
	case PlayerJoinedEvent:
		return e.Type
	case PlayerLeftEvent:
		return e.Type
	case PlayerDisconnectedEvent:
		return e.Type
	case PlayerReconnectedEvent:
		return e.Type
	case ReconnectSuccessEvent:
		return e.Type
	case GameStartedEvent:
		return e.Type
	case RoundStartedEvent:
		return e.Type
	case RoundTimedOutEvent:
		return e.Type
	case RoundEndedEvent:
		return e.Type
	case SoloRoundEndedEvent:
		return e.Type
	case PlayerGuessedEvent:
		return e.Type
	case GameEndedEvent:
		return e.Type
	case SoloGameEndedEvent:
		return e.Type
	case RankUpEvent:
		return e.Type
	case BroadcastEvent:
		return e.Type
	}
	return ""
}

type memUserStore struct {
	mu    sync.Mutex
	users map[int64]*models.User
	ranks map[int64]string
	stats map[int64]map[string]models.CountryStat
}

func newMemUserStore(users ...*models.User) *memUserStore {
	s := &memUserStore{
		users: make(map[int64]*models.User),
		ranks: make(map[int64]string),
		stats: make(map[int64]map[string]models.CountryStat),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) GetUsers(ctx context.Context, ids []int64) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *memUserStore) AwardDuelXP(ctx context.Context, winnerID, loserID int64) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[winnerID].XP += 50
	s.users[loserID].XP += 10
	return s.users[winnerID].XP, s.users[loserID].XP, nil
}

func (s *memUserStore) UpdateRank(ctx context.Context, id int64, rank string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranks[id] = rank
	s.users[id].Rank = rank
	return nil
}

func (s *memUserStore) UpdateCountryStats(ctx context.Context, id int64, stats map[string]models.CountryStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[id] = stats
	return nil
}

type memLobbyStore struct {
	mu      sync.Mutex
	lobbies map[string]*models.Lobby
	deleted []string
}

func newMemLobbyStore(lobbies ...*models.Lobby) *memLobbyStore {
	s := &memLobbyStore{lobbies: make(map[string]*models.Lobby)}
	for _, l := range lobbies {
		s.lobbies[l.InviteCode] = l
	}
	return s
}

func (s *memLobbyStore) GetByCode(ctx context.Context, code string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[code]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	cp := *l
	cp.Users = append([]int64(nil), l.Users...)
	return &cp, nil
}

func (s *memLobbyStore) AddUser(ctx context.Context, code string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lobbies[code]
	l.Users = append(l.Users, userID)
	return nil
}

func (s *memLobbyStore) RemoveUser(ctx context.Context, code string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[code]
	if !ok {
		return nil
	}
	for i, uid := range l.Users {
		if uid == userID {
			l.Users = append(l.Users[:i], l.Users[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memLobbyStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, code)
	s.deleted = append(s.deleted, code)
	return nil
}

type memSnapshotStore struct {
	mu    sync.Mutex
	snaps map[string][]byte
	marks map[string]bool
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{snaps: make(map[string][]byte), marks: make(map[string]bool)}
}

func markKey(code string, userID int64) string {
	return code + ":" + strconv.FormatInt(userID, 10)
}

func (s *memSnapshotStore) SetSnapshot(ctx context.Context, code string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[code] = data
	return nil
}

func (s *memSnapshotStore) GetSnapshot(ctx context.Context, code string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaps[code], nil
}

func (s *memSnapshotStore) DeleteSnapshot(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, code)
	return nil
}

func (s *memSnapshotStore) MarkDisconnected(ctx context.Context, code string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[markKey(code, userID)] = true
	return nil
}

func (s *memSnapshotStore) ClearDisconnected(ctx context.Context, code string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, markKey(code, userID))
	return nil
}

func (s *memSnapshotStore) IsDisconnected(ctx context.Context, code string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[markKey(code, userID)], nil
}

type memWarReporter struct {
	mu     sync.Mutex
	scores []struct {
		WarID  int64
		UserID int64
		Score  int
	}
}

func (w *memWarReporter) SubmitScore(ctx context.Context, warID, userID int64, score int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scores = append(w.scores, struct {
		WarID  int64
		UserID int64
		Score  int
	}{warID, userID, score})
	return nil
}

// paris is the reference location used across these tests.
var paris = models.Location{Lat: 48.8566, Lon: 2.3522, Region: "Paris", Country: "France"}

func duelFixture(t *testing.T, xpA, xpB int, locs []models.Location) (*Engine, *memUserStore, *memLobbyStore, *memSnapshotStore, *memWarReporter, *fakeConn, *fakeConn) {
	t.Helper()
	userA := &models.User{ID: 1, Name: "ann", XP: xpA, Rank: RankForXP(xpA)}
	userB := &models.User{ID: 2, Name: "bob", XP: xpB, Rank: RankForXP(xpB)}
	users := newMemUserStore(userA, userB)
	lobbies := newMemLobbyStore(&models.Lobby{
		ID: 10, InviteCode: "abc123", HostID: 1, TimerSec: DuelTimerSec,
		Users: []int64{1}, Locations: locs, Mode: models.ModeDuel,
	})
	snaps := newMemSnapshotStore()
	wars := &memWarReporter{}
	e := NewEngine(NewRegistry(), users, lobbies, snaps, wars, nil)

	connA, connB := &fakeConn{}, &fakeConn{}
	require.NoError(t, e.HandleJoin(context.Background(), "abc123", userA, connA))
	require.NoError(t, e.HandleJoin(context.Background(), "abc123", userB, connB))
	return e, users, lobbies, snaps, wars, connA, connB
}

func TestPerfectRound(t *testing.T) {
	locs := make([]models.Location, 3)
	for i := range locs {
		locs[i] = paris
	}
	e, _, _, _, _, connA, connB := duelFixture(t, 1000, 950, locs)
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, 48.8566, 2.3522))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 2, 48.8566, 3.0))

	distB := geo.DistanceM(48.8566, 3.0, paris.Lat, paris.Lon)
	wantDamage := geo.MaxPoints - geo.Points(distB)

	var ended *RoundEndedEvent
	for _, ev := range connB.all() {
		if re, ok := ev.(RoundEndedEvent); ok {
			ended = &re
			break
		}
	}
	require.NotNil(t, ended, "round_ended not received")
	assert.Equal(t, int64(1), ended.Winner)
	assert.Equal(t, wantDamage, ended.Damage)
	assert.Equal(t, StartingHP, ended.HP[1])
	assert.Equal(t, StartingHP-wantDamage, ended.HP[2])
	assert.Len(t, ended.Results, 2)

	// both sockets saw one guess notification per player
	assert.Equal(t, 2, connA.countType(EvtPlayerGuessed))
}

func TestRoundTimeoutZeroGuesses(t *testing.T) {
	e, _, _, _, _, connA, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleRoundEnd(ctx, "abc123"))

	var timedOut *RoundTimedOutEvent
	for _, ev := range connA.all() {
		if to, ok := ev.(RoundTimedOutEvent); ok {
			timedOut = &to
			break
		}
	}
	require.NotNil(t, timedOut)
	assert.Equal(t, 0, timedOut.NumGuesses)
	assert.Equal(t, StartingHP-500, timedOut.HP[1])
	assert.Equal(t, StartingHP-500, timedOut.HP[2])
}

func TestRoundTimeoutOneGuess(t *testing.T) {
	e, _, _, _, _, connA, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))
	require.NoError(t, e.HandleRoundEnd(ctx, "abc123"))

	var timedOut *RoundTimedOutEvent
	for _, ev := range connA.all() {
		if to, ok := ev.(RoundTimedOutEvent); ok {
			timedOut = &to
			break
		}
	}
	require.NotNil(t, timedOut)
	assert.Equal(t, 1, timedOut.NumGuesses)
	assert.Equal(t, StartingHP, timedOut.HP[1])
	assert.Equal(t, StartingHP-1000, timedOut.HP[2])
}

func TestDuplicateGuessIgnored(t *testing.T) {
	e, _, _, _, _, connA, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, 0, 0))

	assert.Equal(t, 1, connA.countType(EvtPlayerGuessed))

	e.lock()
	g := e.game("abc123")
	assert.Len(t, g.state.Guesses[0], 1)
	e.unlock()
}

func TestRoundEndIdempotent(t *testing.T) {
	e, _, _, _, _, connA, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleRoundEnd(ctx, "abc123"))

	// a stale timer firing for round 0 must not double-apply damage
	e.lock()
	g := e.game("abc123")
	e.endRoundLocked(ctx, g, 0)
	hp1 := g.state.HP[1]
	e.unlock()

	assert.Equal(t, StartingHP-500, hp1)
	assert.Equal(t, 1, connA.countType(EvtRoundTimedOut))
}

func TestGameEndByHP(t *testing.T) {
	e, _, lobbies, snaps, _, connA, _ := duelFixture(t, 1000, 950, []models.Location{paris, paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))

	// drain B's HP so the next lost round is lethal
	e.lock()
	e.game("abc123").state.HP[2] = 100
	e.unlock()

	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 2, 48.8566, 3.0))

	var ended *GameEndedEvent
	for _, ev := range connA.all() {
		if ge, ok := ev.(GameEndedEvent); ok {
			ended = &ge
			break
		}
	}
	require.NotNil(t, ended, "game_ended not received")
	assert.Equal(t, int64(1), ended.Winner)
	assert.Len(t, ended.Players, 2)

	// no round_ended for the lethal round, and round 1 never started
	assert.Equal(t, 0, connA.countType(EvtRoundEnded))
	assert.Equal(t, 1, connA.countType(EvtRoundStarted))

	// snapshot and lobby row are gone
	data, _ := snaps.GetSnapshot(ctx, "abc123")
	assert.Nil(t, data)
	assert.Contains(t, lobbies.deleted, "abc123")
}

func TestRankUpOnWin(t *testing.T) {
	e, users, _, _, _, connA, _ := duelFixture(t, 95, 400, []models.Location{paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 2, 48.8566, 3.0))
	// single-location game: resolving the round ends the game

	var rankUp *RankUpEvent
	for _, ev := range connA.all() {
		if ru, ok := ev.(RankUpEvent); ok {
			rankUp = &ru
			break
		}
	}
	require.NotNil(t, rankUp, "rank_up not received")
	require.Len(t, rankUp.RankUps, 1)
	assert.Equal(t, int64(1), rankUp.RankUps[0].UserID)
	assert.Equal(t, "Ashborn", rankUp.RankUps[0].OldRank)
	assert.Equal(t, "Fog Runner", rankUp.RankUps[0].NewRank)

	u, err := users.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 145, u.XP)
}

func TestCountryStatsOnGameEnd(t *testing.T) {
	e, users, _, _, _, _, _ := duelFixture(t, 1000, 1000, []models.Location{paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	// A lands within 500 m, B far beyond 2 km
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 2, 48.8566, 3.0))

	users.mu.Lock()
	defer users.mu.Unlock()
	require.Contains(t, users.stats, int64(1))
	require.Contains(t, users.stats, int64(2))
	assert.Equal(t, 1, users.stats[1]["France"].Close)
	assert.Equal(t, 0, users.stats[1]["France"].Far)
	assert.Equal(t, 1, users.stats[2]["France"].Far)
}

func TestLobbyFull(t *testing.T) {
	e, users, _, _, _, _, _ := duelFixture(t, 1000, 1000, []models.Location{paris})
	users.users[3] = &models.User{ID: 3, Name: "eve", XP: 500, Rank: "Tin Sight"}

	err := e.HandleJoin(context.Background(), "abc123", &models.User{ID: 3, Name: "eve"}, &fakeConn{})
	assert.ErrorIs(t, err, ErrLobbyFull)
}

func TestDisconnectReconnect(t *testing.T) {
	e, users, _, snaps, _, connA, connB := duelFixture(t, 1000, 1000, []models.Location{paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))

	e.lock()
	startMS := e.game("abc123").state.RoundStartMS
	e.unlock()

	e.HandleDisconnect(ctx, "abc123", 1, connA)

	marked, err := snaps.IsDisconnected(ctx, "abc123", 1)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.Equal(t, 1, connB.countType(EvtPlayerDisconnected))

	userA, err := users.GetUser(ctx, 1)
	require.NoError(t, err)
	connA2 := &fakeConn{}
	require.NoError(t, e.HandleReconnect(ctx, "abc123", userA, connA2))

	marked, err = snaps.IsDisconnected(ctx, "abc123", 1)
	require.NoError(t, err)
	assert.False(t, marked, "mark must be cleared on reconnect")

	var success *ReconnectSuccessEvent
	for _, ev := range connA2.all() {
		if rs, ok := ev.(ReconnectSuccessEvent); ok {
			success = &rs
			break
		}
	}
	require.NotNil(t, success)
	require.NotNil(t, success.GameState)
	assert.Equal(t, startMS, success.GameState.RoundStartTime)
	assert.Equal(t, StartingHP, success.GameState.HP[1])

	assert.Equal(t, 1, connB.countType(EvtPlayerReconnected))
	assert.Equal(t, 0, connA2.countType(EvtPlayerReconnected), "reconnector must not see own notice")
	assert.Equal(t, 0, connB.countType(EvtPlayerLeft), "no player_left after a timely reconnect")

	// the replacement connection receives subsequent broadcasts
	e.HandleChat("abc123", "bob", "welcome back")
	assert.Equal(t, 1, connA2.countType(EvtBroadcast))
}

func TestClanWarSoloGame(t *testing.T) {
	userA := &models.User{ID: 1, Name: "ann", XP: 1000, Rank: "Steel Pusher"}
	users := newMemUserStore(userA)
	lobbies := newMemLobbyStore(&models.Lobby{
		ID: 11, InviteCode: "war001", HostID: 1, TimerSec: ClanWarTimerSec,
		Users: []int64{1}, Locations: []models.Location{paris, paris},
		Mode: models.ModeClanWar, WarID: 77,
	})
	snaps := newMemSnapshotStore()
	wars := &memWarReporter{}
	e := NewEngine(NewRegistry(), users, lobbies, snaps, wars, nil)

	conn := &fakeConn{}
	ctx := context.Background()
	require.NoError(t, e.HandleJoin(ctx, "war001", userA, conn))
	require.NoError(t, e.HandleGameStart(ctx, "war001"))

	// one guess resolves a clan-war round
	require.NoError(t, e.HandleGuess(ctx, "war001", 1, paris.Lat, paris.Lon))
	assert.Equal(t, 1, conn.countType(EvtRoundEnded))

	// play the final round directly; the inter-round delay is skipped
	require.NoError(t, e.HandleRoundStart(ctx, "war001"))
	require.NoError(t, e.HandleGuess(ctx, "war001", 1, paris.Lat, paris.Lon))

	wars.mu.Lock()
	defer wars.mu.Unlock()
	require.Len(t, wars.scores, 1)
	assert.Equal(t, int64(77), wars.scores[0].WarID)
	assert.Equal(t, int64(1), wars.scores[0].UserID)
	assert.Equal(t, 2*geo.MaxPoints, wars.scores[0].Score)
}

func TestGameStartIdempotent(t *testing.T) {
	e, _, _, _, _, connA, _ := duelFixture(t, 1000, 1000, []models.Location{paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleGameStart(ctx, "abc123"))

	assert.Equal(t, 1, connA.countType(EvtGameStarted))
	assert.Equal(t, 1, connA.countType(EvtRoundStarted))
}

func TestHPMonotonicNonIncreasing(t *testing.T) {
	e, _, _, _, _, connA, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris, paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleRoundEnd(ctx, "abc123"))
	require.NoError(t, e.HandleRoundStart(ctx, "abc123"))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))
	require.NoError(t, e.HandleRoundEnd(ctx, "abc123"))

	last := map[int64]int{1: StartingHP, 2: StartingHP}
	for _, ev := range connA.all() {
		var hp map[int64]int
		switch e := ev.(type) {
		case RoundTimedOutEvent:
			hp = e.HP
		case RoundEndedEvent:
			hp = e.HP
		default:
			continue
		}
		for uid, v := range hp {
			assert.LessOrEqual(t, v, last[uid], "hp increased for user %d", uid)
			last[uid] = v
		}
	}
}

func TestSpectatorReceivesSnapshotAndBroadcasts(t *testing.T) {
	e, _, _, _, _, _, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))

	spec := &fakeConn{}
	require.NoError(t, e.HandleSpectate(ctx, "abc123", spec))

	assert.Equal(t, 1, spec.countType(EvtPlayerJoined))
	assert.Equal(t, 1, spec.countType(EvtGameStarted))
	assert.Equal(t, 1, spec.countType(EvtRoundStarted))

	e.HandleChat("abc123", "ann", "hi")
	assert.Equal(t, 1, spec.countType(EvtBroadcast))

	e.HandleSpectatorLeave("abc123", spec)
	e.HandleChat("abc123", "ann", "gone")
	assert.Equal(t, 1, spec.countType(EvtBroadcast))
}

func TestLeaveBroadcastsRoster(t *testing.T) {
	e, _, lobbies, _, _, connA, connB := duelFixture(t, 1000, 1000, []models.Location{paris})
	ctx := context.Background()

	e.HandleLeave(ctx, "abc123", 2, connB)

	var left *PlayerLeftEvent
	for _, ev := range connA.all() {
		if pl, ok := ev.(PlayerLeftEvent); ok {
			left = &pl
			break
		}
	}
	require.NotNil(t, left)
	assert.Equal(t, int64(2), left.Player)
	require.Len(t, left.Players, 1)
	assert.Equal(t, int64(1), left.Players[0].UserID)

	// the last connection leaving tears the lobby down
	e.HandleLeave(ctx, "abc123", 1, connA)
	assert.Contains(t, lobbies.deleted, "abc123")
}

func TestReconnectRestoresFromSnapshot(t *testing.T) {
	e, users, lobbies, snaps, wars, _, _ := duelFixture(t, 1000, 1000, []models.Location{paris, paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, e.HandleGuess(ctx, "abc123", 1, paris.Lat, paris.Lon))

	// a fresh engine over the same stores, as after a process restart
	e2 := NewEngine(NewRegistry(), users, lobbies, snaps, wars, nil)
	userA, err := users.GetUser(ctx, 1)
	require.NoError(t, err)
	connA2 := &fakeConn{}
	require.NoError(t, e2.HandleReconnect(ctx, "abc123", userA, connA2))

	var success *ReconnectSuccessEvent
	for _, ev := range connA2.all() {
		if rs, ok := ev.(ReconnectSuccessEvent); ok {
			success = &rs
			break
		}
	}
	require.NotNil(t, success)
	require.NotNil(t, success.GameState)
	assert.Equal(t, 0, success.GameState.CurrentRound)
	assert.Equal(t, StartingHP, success.GameState.HP[1])
	assert.True(t, success.GameState.HasGuessed)
	assert.Equal(t, []int64{1}, success.GameState.GuessedUsers)
}

func TestReconnectCorruptSnapshotForcesLeave(t *testing.T) {
	e, users, lobbies, snaps, wars, _, _ := duelFixture(t, 1000, 1000, []models.Location{paris})
	ctx := context.Background()

	require.NoError(t, e.HandleGameStart(ctx, "abc123"))
	require.NoError(t, snaps.SetSnapshot(ctx, "abc123", []byte("{not json")))

	e2 := NewEngine(NewRegistry(), users, lobbies, snaps, wars, nil)
	userA, err := users.GetUser(ctx, 1)
	require.NoError(t, err)
	connA2 := &fakeConn{}
	err = e2.HandleReconnect(ctx, "abc123", userA, connA2)
	require.ErrorIs(t, err, ErrCorruptSnapshot)

	// the poisoned key is gone and the session was abandoned
	data, err := snaps.GetSnapshot(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, 0, connA2.countType(EvtReconnectSuccess))
}
