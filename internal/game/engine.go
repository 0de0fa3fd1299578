// internal/game/engine.go
package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoduel-gg/geoduel/internal/geo"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// GraceWindow is how long a disconnected player may return before being
// treated as gone for good.
const GraceWindow = 180 * time.Second

// Damage applied when a round resolves without a full set of guesses.
const (
	noGuessDamage  = 500
	oneGuessDamage = 1000
)

// Country-stats distance cutoffs in meters.
const (
	closeGuessM = 500
	farGuessM   = 2000
)

var (
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrLobbyFull     = errors.New("lobby is full")
	ErrGameNotFound  = errors.New("no active game for lobby")
	ErrHPMissing     = errors.New("hp entry missing for participant")
)

// UserStore is the durable user surface the engine needs.
type UserStore interface {
	GetUsers(ctx context.Context, ids []int64) ([]*models.User, error)
	AwardDuelXP(ctx context.Context, winnerID, loserID int64) (winnerXP, loserXP int, err error)
	UpdateRank(ctx context.Context, id int64, rank string) error
	UpdateCountryStats(ctx context.Context, id int64, stats map[string]models.CountryStat) error
}

// LobbyStore is the durable lobby surface the engine needs.
type LobbyStore interface {
	GetByCode(ctx context.Context, code string) (*models.Lobby, error)
	AddUser(ctx context.Context, code string, userID int64) error
	RemoveUser(ctx context.Context, code string, userID int64) error
	Delete(ctx context.Context, code string) error
}

// SnapshotStore is the ephemeral KV surface: game snapshots and disconnect
// marks, both keyed by lobby invite code. GetSnapshot returns nil data, not
// an error, when no snapshot exists.
type SnapshotStore interface {
	SetSnapshot(ctx context.Context, code string, data []byte) error
	GetSnapshot(ctx context.Context, code string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, code string) error
	MarkDisconnected(ctx context.Context, code string, userID int64) error
	ClearDisconnected(ctx context.Context, code string, userID int64) error
	IsDisconnected(ctx context.Context, code string, userID int64) (bool, error)
}

// WarReporter receives a finished clan-war duel's solo score.
type WarReporter interface {
	SubmitScore(ctx context.Context, warID, userID int64, score int) error
}

// liveGame is the per-lobby unit of shared state. All mutation happens under
// its mutex; timer callbacks re-enter through the engine and take it again.
type liveGame struct {
	code       string
	lobby      *models.Lobby
	state      *GameState
	roundTimer *time.Timer
	interRound *time.Timer
	kickTimers map[int64]*time.Timer
	ended      bool
}

// Engine drives every lobby's round state machine.
type Engine struct {
	registry  *Registry
	users     UserStore
	lobbies   LobbyStore
	snapshots SnapshotStore
	wars      WarReporter
	log       logrus.FieldLogger

	mu    sync.Mutex
	games map[string]*liveGame
}

func NewEngine(registry *Registry, users UserStore, lobbies LobbyStore, snapshots SnapshotStore, wars WarReporter, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		registry:  registry,
		users:     users,
		lobbies:   lobbies,
		snapshots: snapshots,
		wars:      wars,
		log:       log,
		games:     make(map[string]*liveGame),
	}
}

// lock serializes all state-machine transitions. One engine-wide critical
// section is enough at this scale; the work inside never blocks on sockets
// because broadcasts only enqueue.
func (e *Engine) lock()   { e.mu.Lock() }
func (e *Engine) unlock() { e.mu.Unlock() }

func (e *Engine) Registry() *Registry { return e.registry }

// game returns the live game for a code, or nil.
func (e *Engine) game(code string) *liveGame {
	return e.games[code]
}

// ensureGame loads the lobby and creates the liveGame container if needed.
// Caller holds the engine lock.
func (e *Engine) ensureGame(ctx context.Context, code string) (*liveGame, error) {
	if g, ok := e.games[code]; ok {
		return g, nil
	}
	lobby, err := e.lobbies.GetByCode(ctx, code)
	if err != nil {
		return nil, ErrLobbyNotFound
	}
	g := &liveGame{
		code:       code,
		lobby:      lobby,
		kickTimers: make(map[int64]*time.Timer),
	}
	e.games[code] = g
	return g, nil
}

// persist mirrors the game state to the KV. Best effort; a failed write is
// logged and play continues.
func (e *Engine) persist(ctx context.Context, g *liveGame) {
	if g.state == nil {
		return
	}
	data, err := g.state.Encode()
	if err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Error("failed to encode game snapshot")
		return
	}
	if err := e.snapshots.SetSnapshot(ctx, g.code, data); err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Warn("failed to store game snapshot")
	}
}

// restoreStateLocked rehydrates a game from its KV snapshot, for reconnects
// that arrive after the in-memory state was lost. An unparseable snapshot is
// deleted rather than trusted; the caller must treat that as a forced leave.
func (e *Engine) restoreStateLocked(ctx context.Context, g *liveGame) error {
	data, err := e.snapshots.GetSnapshot(ctx, g.code)
	if err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Warn("failed to read game snapshot")
		return nil
	}
	if data == nil {
		return nil
	}
	s, err := DecodeGameState(data)
	if err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Error("discarding corrupt game snapshot")
		if derr := e.snapshots.DeleteSnapshot(ctx, g.code); derr != nil {
			e.log.WithError(derr).WithField("lobby", g.code).Warn("failed to delete corrupt snapshot")
		}
		return ErrCorruptSnapshot
	}
	g.state = s
	return nil
}

func (e *Engine) roster(ctx context.Context, g *liveGame) []models.PlayerInfo {
	users, err := e.users.GetUsers(ctx, g.lobby.Users)
	if err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Warn("failed to load roster")
		return nil
	}
	infos := make([]models.PlayerInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, u.Info())
	}
	return infos
}

// HandleJoin admits a user to a lobby, attaches their connection, and
// announces the new roster to everyone including the newcomer.
func (e *Engine) HandleJoin(ctx context.Context, code string, user *models.User, conn Sender) error {
	e.lock()
	defer e.unlock()

	g, err := e.ensureGame(ctx, code)
	if err != nil {
		return err
	}

	member := false
	for _, uid := range g.lobby.Users {
		if uid == user.ID {
			member = true
			break
		}
	}
	if !member {
		if g.lobby.Mode != models.ModeClanWar && len(g.lobby.Users) >= 2 {
			return ErrLobbyFull
		}
		if err := e.lobbies.AddUser(ctx, code, user.ID); err != nil {
			return err
		}
		g.lobby.Users = append(g.lobby.Users, user.ID)
		if g.state != nil {
			g.state.HP[user.ID] = StartingHP
		}
	}

	// a repeat join from an attached user is just a roster rebroadcast
	if !e.registry.IsAttached(code, user.ID) {
		e.registry.Attach(code, user.ID, conn)
	}
	e.registry.Broadcast(code, PlayerJoinedEvent{
		Type:    EvtPlayerJoined,
		Player:  user.Info(),
		Host:    g.lobby.HostID,
		Players: e.roster(ctx, g),
	})
	return nil
}

// HandleLeave removes a connection permanently. With connections left behind
// the user is dropped from the roster and announced; with none, the lobby and
// its snapshot are torn down.
func (e *Engine) HandleLeave(ctx context.Context, code string, userID int64, conn Sender) {
	e.lock()
	defer e.unlock()
	e.handleLeaveLocked(ctx, code, userID, conn)
}

func (e *Engine) handleLeaveLocked(ctx context.Context, code string, userID int64, conn Sender) {
	g := e.game(code)

	var remaining int
	if conn != nil {
		remaining = e.registry.Detach(code, conn)
	} else {
		remaining = len(e.registry.AttachedUsers(code))
	}

	if g != nil {
		if t, ok := g.kickTimers[userID]; ok {
			t.Stop()
			delete(g.kickTimers, userID)
		}
	}
	if err := e.snapshots.ClearDisconnected(ctx, code, userID); err != nil {
		e.log.WithError(err).WithField("lobby", code).Warn("failed to clear disconnect mark")
	}

	if remaining > 0 {
		if err := e.lobbies.RemoveUser(ctx, code, userID); err != nil {
			e.log.WithError(err).WithField("lobby", code).Warn("failed to remove user from lobby")
		}
		if g != nil {
			for i, uid := range g.lobby.Users {
				if uid == userID {
					g.lobby.Users = append(g.lobby.Users[:i], g.lobby.Users[i+1:]...)
					break
				}
			}
			e.registry.Broadcast(code, PlayerLeftEvent{
				Type:    EvtPlayerLeft,
				Player:  userID,
				Players: e.roster(ctx, g),
			})
		}
		return
	}

	e.teardown(ctx, code)
}

// teardown cancels timers and deletes the lobby plus its ephemeral state.
// Caller holds the engine lock.
func (e *Engine) teardown(ctx context.Context, code string) {
	g := e.game(code)
	if g != nil {
		if g.roundTimer != nil {
			g.roundTimer.Stop()
		}
		if g.interRound != nil {
			g.interRound.Stop()
		}
		for _, t := range g.kickTimers {
			t.Stop()
		}
		delete(e.games, code)
	}
	if err := e.snapshots.DeleteSnapshot(ctx, code); err != nil {
		e.log.WithError(err).WithField("lobby", code).Warn("failed to delete game snapshot")
	}
	if err := e.lobbies.Delete(ctx, code); err != nil {
		e.log.WithError(err).WithField("lobby", code).Warn("failed to delete lobby")
	}
}

// HandleGameStart initializes the game state and opens the first round.
// A second game_start on a running game is a no-op.
func (e *Engine) HandleGameStart(ctx context.Context, code string) error {
	e.lock()
	defer e.unlock()

	g, err := e.ensureGame(ctx, code)
	if err != nil {
		return err
	}
	if g.state != nil {
		return nil
	}

	g.state = NewGameState(g.lobby)
	e.registry.Broadcast(code, GameStartedEvent{
		Type:  EvtGameStarted,
		HP:    copyHP(g.state.HP),
		Timer: g.state.TimerSec,
	})
	e.persist(ctx, g)

	e.startRoundLocked(ctx, g)
	return nil
}

// HandleRoundStart opens the current round if it has not started yet.
func (e *Engine) HandleRoundStart(ctx context.Context, code string) error {
	e.lock()
	defer e.unlock()

	g := e.game(code)
	if g == nil || g.state == nil {
		return ErrGameNotFound
	}
	e.startRoundLocked(ctx, g)
	return nil
}

func (e *Engine) startRoundLocked(ctx context.Context, g *liveGame) {
	if g.ended {
		return
	}
	s := g.state
	idx := s.CurrentIndex
	if _, done := s.StartedRounds[idx]; done {
		return
	}
	if idx >= len(s.Locations) {
		e.endGameLocked(ctx, g)
		return
	}

	s.StartedRounds[idx] = struct{}{}
	s.RoundStartMS = time.Now().UnixMilli()

	loc := s.Locations[idx]
	e.registry.Broadcast(g.code, RoundStartedEvent{
		Type:           EvtRoundStarted,
		Lat:            loc.Lat,
		Lon:            loc.Lon,
		URL:            loc.URL,
		Timer:          s.TimerSec,
		RoundStartTime: s.RoundStartMS,
	})
	e.persist(ctx, g)

	code := g.code
	g.roundTimer = time.AfterFunc(time.Duration(s.TimerSec)*time.Second, func() {
		e.lock()
		defer e.unlock()
		if g2 := e.game(code); g2 != nil {
			e.endRoundLocked(context.Background(), g2, idx)
		}
	})
}

// HandleGuess records one guess for the active round. A repeat guess from the
// same user is silently ignored.
func (e *Engine) HandleGuess(ctx context.Context, code string, userID int64, lat, lon float64) error {
	e.lock()
	defer e.unlock()

	g := e.game(code)
	if g == nil || g.state == nil {
		return ErrGameNotFound
	}
	s := g.state
	if s.CurrentIndex >= len(s.Locations) {
		return nil
	}
	if s.HasGuessed(userID) {
		return nil
	}

	loc := s.CurrentLocation()
	dist := geo.DistanceM(lat, lon, loc.Lat, loc.Lon)
	s.Guesses[s.CurrentIndex] = append(s.Guesses[s.CurrentIndex], Guess{
		UserID:    userID,
		DistanceM: dist,
		Lat:       lat,
		Lon:       lon,
		Country:   loc.Country,
	})

	e.registry.Broadcast(code, PlayerGuessedEvent{Type: EvtPlayerGuessed, Player: userID})
	e.persist(ctx, g)

	if len(s.Guesses[s.CurrentIndex]) >= s.GuessThreshold() {
		e.endRoundLocked(ctx, g, s.CurrentIndex)
	}
	return nil
}

// HandleRoundEnd resolves the current round. Idempotent per round index, so a
// late timer firing after an early resolution is harmless.
func (e *Engine) HandleRoundEnd(ctx context.Context, code string) error {
	e.lock()
	defer e.unlock()

	g := e.game(code)
	if g == nil || g.state == nil {
		return ErrGameNotFound
	}
	e.endRoundLocked(ctx, g, g.state.CurrentIndex)
	return nil
}

func (e *Engine) endRoundLocked(ctx context.Context, g *liveGame, idx int) {
	s := g.state
	if g.ended || s == nil || idx != s.CurrentIndex {
		return
	}
	if _, done := s.EndedRounds[idx]; done {
		return
	}
	s.EndedRounds[idx] = struct{}{}
	if g.roundTimer != nil {
		g.roundTimer.Stop()
		g.roundTimer = nil
	}

	if s.Mode == models.ModeClanWar {
		e.endSoloRoundLocked(ctx, g, idx)
		return
	}
	e.endDuelRoundLocked(ctx, g, idx)
}

func (e *Engine) endDuelRoundLocked(ctx context.Context, g *liveGame, idx int) {
	s := g.state
	guesses := s.Guesses[idx]
	loc := s.Locations[idx]

	switch len(guesses) {
	case 0:
		for uid := range s.HP {
			s.HP[uid] -= noGuessDamage
		}
	case 1:
		for _, uid := range g.lobby.Users {
			if uid != guesses[0].UserID {
				if _, ok := s.HP[uid]; !ok {
					e.log.WithField("lobby", g.code).WithField("user", uid).Error(ErrHPMissing)
					return
				}
				s.HP[uid] -= oneGuessDamage
			}
		}
	default:
		for i := range guesses {
			guesses[i].Points = geo.Points(guesses[i].DistanceM)
		}
		win, lose := 0, 1
		if guesses[lose].Points > guesses[win].Points ||
			(guesses[lose].Points == guesses[win].Points && guesses[lose].UserID < guesses[win].UserID) {
			win, lose = lose, win
		}
		damage := guesses[win].Points - guesses[lose].Points
		loserID := guesses[lose].UserID
		if _, ok := s.HP[loserID]; !ok {
			e.log.WithField("lobby", g.code).WithField("user", loserID).Error(ErrHPMissing)
			return
		}
		s.HP[loserID] -= damage

		if anyDead(s.HP) {
			e.persist(ctx, g)
			e.endGameLocked(ctx, g)
			return
		}
		e.registry.Broadcast(g.code, RoundEndedEvent{
			Type:    EvtRoundEnded,
			Winner:  guesses[win].UserID,
			Damage:  damage,
			HP:      copyHP(s.HP),
			Results: guesses,
			Lat:     loc.Lat,
			Lon:     loc.Lon,
		})
		e.advanceLocked(ctx, g)
		return
	}

	// 0 or 1 guess path
	if anyDead(s.HP) {
		e.persist(ctx, g)
		e.endGameLocked(ctx, g)
		return
	}
	e.registry.Broadcast(g.code, RoundTimedOutEvent{
		Type:       EvtRoundTimedOut,
		HP:         copyHP(s.HP),
		NumGuesses: len(guesses),
	})
	e.advanceLocked(ctx, g)
}

func (e *Engine) endSoloRoundLocked(ctx context.Context, g *liveGame, idx int) {
	s := g.state
	guesses := s.Guesses[idx]
	loc := s.Locations[idx]

	if len(guesses) > 0 {
		pts := geo.Points(guesses[0].DistanceM)
		s.SoloScore += pts
		e.registry.Broadcast(g.code, SoloRoundEndedEvent{
			Type:       EvtRoundEnded,
			Points:     pts,
			TotalScore: s.SoloScore,
			Lat:        loc.Lat,
			Lon:        loc.Lon,
		})
	}
	e.advanceLocked(ctx, g)
}

// advanceLocked moves to the next round after the mandatory display delay,
// or ends the game when the location list is exhausted.
func (e *Engine) advanceLocked(ctx context.Context, g *liveGame) {
	s := g.state
	s.CurrentIndex++
	e.persist(ctx, g)

	if s.CurrentIndex >= len(s.Locations) {
		e.endGameLocked(ctx, g)
		return
	}

	code := g.code
	g.interRound = time.AfterFunc(InterRoundDelay*time.Second, func() {
		e.lock()
		defer e.unlock()
		if g2 := e.game(code); g2 != nil && g2.state != nil {
			e.startRoundLocked(context.Background(), g2)
		}
	})
}

// HandleGameEnd ends the game immediately, regardless of remaining rounds.
func (e *Engine) HandleGameEnd(ctx context.Context, code string) error {
	e.lock()
	defer e.unlock()

	g := e.game(code)
	if g == nil || g.state == nil {
		return ErrGameNotFound
	}
	e.endGameLocked(ctx, g)
	return nil
}

func (e *Engine) endGameLocked(ctx context.Context, g *liveGame) {
	if g.ended {
		return
	}
	g.ended = true
	s := g.state

	if s != nil && s.Mode == models.ModeClanWar {
		e.registry.Broadcast(g.code, SoloGameEndedEvent{
			Type:       EvtGameEnded,
			TotalScore: s.SoloScore,
		})
		if s.WarID != 0 && len(g.lobby.Users) > 0 {
			if err := e.wars.SubmitScore(ctx, s.WarID, g.lobby.Users[0], s.SoloScore); err != nil {
				e.log.WithError(err).WithField("war", s.WarID).Error("failed to submit war score")
			}
		}
		e.teardown(ctx, g.code)
		return
	}

	totals := make(map[int64]float64, len(g.lobby.Users))
	for _, gs := range s.Guesses {
		for _, guess := range gs {
			totals[guess.UserID] += guess.DistanceM
		}
	}

	winnerID := duelWinner(s.HP)

	users, err := e.users.GetUsers(ctx, g.lobby.Users)
	if err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Error("failed to load participants at game end")
		e.teardown(ctx, g.code)
		return
	}
	infos := make([]models.PlayerInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, u.Info())
	}

	e.registry.Broadcast(g.code, GameEndedEvent{
		Type:           EvtGameEnded,
		Winner:         winnerID,
		TotalDistances: totals,
		Players:        infos,
	})

	if len(users) == 2 {
		e.settleDuel(ctx, g, winnerID, users)
	}

	e.teardown(ctx, g.code)
}

// settleDuel writes XP, rank, and country-stat updates after a finished duel.
// All writes are best effort: a store failure is logged and the rest proceed.
func (e *Engine) settleDuel(ctx context.Context, g *liveGame, winnerID int64, users []*models.User) {
	var winner, loser *models.User
	for _, u := range users {
		if u.ID == winnerID {
			winner = u
		} else {
			loser = u
		}
	}
	if winner == nil || loser == nil {
		e.log.WithField("lobby", g.code).Error("winner not among participants")
		return
	}

	winnerXP, loserXP, err := e.users.AwardDuelXP(ctx, winner.ID, loser.ID)
	if err != nil {
		e.log.WithError(err).WithField("lobby", g.code).Error("failed to award duel xp")
		winnerXP, loserXP = winner.XP, loser.XP
	}

	var rankUps []RankChange
	for _, pair := range []struct {
		u  *models.User
		xp int
	}{{winner, winnerXP}, {loser, loserXP}} {
		newRank := RankForXP(pair.xp)
		if newRank == pair.u.Rank {
			continue
		}
		if err := e.users.UpdateRank(ctx, pair.u.ID, newRank); err != nil {
			e.log.WithError(err).WithField("user", pair.u.ID).Error("failed to update rank")
			continue
		}
		rankUps = append(rankUps, RankChange{
			UserID:  pair.u.ID,
			OldRank: pair.u.Rank,
			NewRank: newRank,
		})
	}
	if len(rankUps) > 0 {
		e.registry.Broadcast(g.code, RankUpEvent{Type: EvtRankUp, RankUps: rankUps})
	}

	for _, u := range users {
		stats := u.CountryStats
		if stats == nil {
			stats = make(map[string]models.CountryStat)
		}
		changed := false
		for _, gs := range g.state.Guesses {
			for _, guess := range gs {
				if guess.UserID != u.ID || guess.Country == "" {
					continue
				}
				cs := stats[guess.Country]
				if guess.DistanceM <= closeGuessM {
					cs.Close++
					changed = true
				} else if guess.DistanceM > farGuessM {
					cs.Far++
					changed = true
				}
				stats[guess.Country] = cs
			}
		}
		if !changed {
			continue
		}
		if err := e.users.UpdateCountryStats(ctx, u.ID, stats); err != nil {
			e.log.WithError(err).WithField("user", u.ID).Error("failed to update country stats")
		}
	}
}

// HandleDisconnect reacts to an unexpected socket drop: mark the player,
// tell the room, and arm the kick task for the grace window.
func (e *Engine) HandleDisconnect(ctx context.Context, code string, userID int64, conn Sender) {
	e.lock()
	defer e.unlock()

	g := e.game(code)
	e.registry.Detach(code, conn)

	if g == nil || g.ended {
		return
	}

	if err := e.snapshots.MarkDisconnected(ctx, code, userID); err != nil {
		e.log.WithError(err).WithField("lobby", code).Warn("failed to write disconnect mark")
	}
	e.registry.Broadcast(code, PlayerDisconnectedEvent{Type: EvtPlayerDisconnected, Player: userID})

	if t, ok := g.kickTimers[userID]; ok {
		t.Stop()
	}
	g.kickTimers[userID] = time.AfterFunc(GraceWindow, func() {
		e.lock()
		defer e.unlock()

		bg := context.Background()
		still, err := e.snapshots.IsDisconnected(bg, code, userID)
		if err != nil {
			e.log.WithError(err).WithField("lobby", code).Warn("failed to check disconnect mark")
		}
		if g2 := e.game(code); g2 != nil {
			delete(g2.kickTimers, userID)
		}
		if !still {
			return
		}
		e.handleLeaveLocked(bg, code, userID, nil)
	})
}

// HandleReconnect restores a returning player: swap the connection, cancel
// the kick, resend state, and tell the rest of the room.
func (e *Engine) HandleReconnect(ctx context.Context, code string, user *models.User, conn Sender) error {
	e.lock()
	defer e.unlock()

	g, err := e.ensureGame(ctx, code)
	if err != nil {
		return err
	}
	if g.state == nil {
		if err := e.restoreStateLocked(ctx, g); err != nil {
			e.handleLeaveLocked(ctx, code, user.ID, conn)
			return err
		}
	}

	if t, ok := g.kickTimers[user.ID]; ok {
		t.Stop()
		delete(g.kickTimers, user.ID)
	}
	if err := e.snapshots.ClearDisconnected(ctx, code, user.ID); err != nil {
		e.log.WithError(err).WithField("lobby", code).Warn("failed to clear disconnect mark")
	}

	e.registry.Replace(code, user.ID, conn)

	var rs *ReconnectState
	if s := g.state; s != nil && s.CurrentIndex < len(s.Locations) {
		loc := s.CurrentLocation()
		elapsed := (time.Now().UnixMilli() - s.RoundStartMS) / 1000
		remaining := s.TimerSec - int(elapsed)
		if remaining < 0 {
			remaining = 0
		}
		rs = &ReconnectState{
			CurrentRound:   s.CurrentIndex,
			Lat:            loc.Lat,
			Lon:            loc.Lon,
			URL:            loc.URL,
			RoundStartTime: s.RoundStartMS,
			RemainingSec:   remaining,
			HP:             copyHP(s.HP),
			HasGuessed:     s.HasGuessed(user.ID),
			GuessedUsers:   s.GuessedUsers(),
		}
	}

	conn.Send(ReconnectSuccessEvent{
		Type:      EvtReconnectSuccess,
		Host:      g.lobby.HostID,
		Players:   e.roster(ctx, g),
		GameState: rs,
	})
	e.registry.BroadcastExcept(code, user.ID, PlayerReconnectedEvent{
		Type:   EvtPlayerReconnected,
		Player: user.ID,
	})
	return nil
}

// SendStateTo pushes the current resume snapshot to one player without
// touching connections or disconnect marks.
func (e *Engine) SendStateTo(ctx context.Context, code string, userID int64) error {
	e.lock()
	defer e.unlock()

	g := e.game(code)
	if g == nil {
		return ErrGameNotFound
	}

	var rs *ReconnectState
	if s := g.state; s != nil && s.CurrentIndex < len(s.Locations) {
		loc := s.CurrentLocation()
		elapsed := (time.Now().UnixMilli() - s.RoundStartMS) / 1000
		remaining := s.TimerSec - int(elapsed)
		if remaining < 0 {
			remaining = 0
		}
		rs = &ReconnectState{
			CurrentRound:   s.CurrentIndex,
			Lat:            loc.Lat,
			Lon:            loc.Lon,
			URL:            loc.URL,
			RoundStartTime: s.RoundStartMS,
			RemainingSec:   remaining,
			HP:             copyHP(s.HP),
			HasGuessed:     s.HasGuessed(userID),
			GuessedUsers:   s.GuessedUsers(),
		}
	}
	e.registry.SendTo(code, userID, ReconnectSuccessEvent{
		Type:      EvtReconnectSuccess,
		Host:      g.lobby.HostID,
		Players:   e.roster(ctx, g),
		GameState: rs,
	})
	return nil
}

// HandleChat relays a chat line to the whole room.
func (e *Engine) HandleChat(code, playerName, message string) {
	e.registry.Broadcast(code, BroadcastEvent{
		Type:    EvtBroadcast,
		Player:  playerName,
		Message: message,
	})
}

// HandleSpectate attaches a read-only observer and replays the current state
// to it: the roster, the HP picture, and the active round if one is open.
func (e *Engine) HandleSpectate(ctx context.Context, code string, conn Sender) error {
	e.lock()
	defer e.unlock()

	g, err := e.ensureGame(ctx, code)
	if err != nil {
		return err
	}

	e.registry.SpectatorAttach(code, conn)

	conn.Send(PlayerJoinedEvent{
		Type:    EvtPlayerJoined,
		Host:    g.lobby.HostID,
		Players: e.roster(ctx, g),
	})
	if s := g.state; s != nil && s.CurrentIndex < len(s.Locations) {
		conn.Send(GameStartedEvent{Type: EvtGameStarted, HP: copyHP(s.HP), Timer: s.TimerSec})
		if _, started := s.StartedRounds[s.CurrentIndex]; started {
			loc := s.CurrentLocation()
			conn.Send(RoundStartedEvent{
				Type:           EvtRoundStarted,
				Lat:            loc.Lat,
				Lon:            loc.Lon,
				URL:            loc.URL,
				Timer:          s.TimerSec,
				RoundStartTime: s.RoundStartMS,
			})
		}
	}
	return nil
}

// HandleSpectatorLeave drops an observer connection.
func (e *Engine) HandleSpectatorLeave(code string, conn Sender) {
	e.registry.SpectatorDetach(code, conn)
}

func copyHP(hp map[int64]int) map[int64]int {
	out := make(map[int64]int, len(hp))
	for k, v := range hp {
		out[k] = v
	}
	return out
}

func anyDead(hp map[int64]int) bool {
	for _, v := range hp {
		if v <= 0 {
			return true
		}
	}
	return false
}

// duelWinner picks the participant with the most HP left; ties go to the
// lowest user id so the outcome is deterministic.
func duelWinner(hp map[int64]int) int64 {
	var winner int64
	best := 0
	first := true
	for uid, v := range hp {
		switch {
		case first, v > best:
			winner, best, first = uid, v, false
		case v == best && uid < winner:
			winner = uid
		}
	}
	return winner
}
