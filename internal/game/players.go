package game

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/typewars/typewars-server/internal/words"
)

// PlayerController owns the set of local players (and teams, when enabled)
// for one session. It maintains the ready and voted counters incrementally,
// keeps displayed names unique within the session and mirrors the
// participant count onto the session record.
type PlayerController struct {
	session  *Session
	repo     Repository
	opts     GameOptions
	provider *words.Provider

	readyCount int
	votedCount int

	players map[int64]*LocalPlayer
	order   []int64
	teams   map[string]*LocalTeam

	uniqueNames map[string]struct{}
}

// NewPlayerController builds the player controller for a session. The word
// provider is shared with the game controller so every player consumes the
// same word sequence.
func NewPlayerController(session *Session, repo Repository, provider *words.Provider, opts GameOptions) *PlayerController {
	pc := &PlayerController{
		session:     session,
		repo:        repo,
		opts:        opts,
		provider:    provider,
		players:     make(map[int64]*LocalPlayer),
		uniqueNames: make(map[string]struct{}),
	}
	if opts.TeamMode {
		pc.teams = map[string]*LocalTeam{
			TeamRed:  newLocalTeam(TeamRed),
			TeamBlue: newLocalTeam(TeamBlue),
		}
	}
	return pc
}

// PlayerCount reports the number of players currently in the session.
func (pc *PlayerController) PlayerCount() int { return len(pc.players) }

// ReadyCount reports how many present players are ready.
func (pc *PlayerController) ReadyCount() int { return pc.readyCount }

// VotedCount reports how many present players have a recorded vote.
func (pc *PlayerController) VotedCount() int { return pc.votedCount }

// Players returns the local players in join order.
func (pc *PlayerController) Players() []*LocalPlayer {
	out := make([]*LocalPlayer, 0, len(pc.order))
	for _, id := range pc.order {
		out = append(out, pc.players[id])
	}
	return out
}

// Teams returns the team map, or nil when team mode is off.
func (pc *PlayerController) Teams() map[string]*LocalTeam { return pc.teams }

// AddPlayer admits a player into the session. Re-adding a present player
// returns the existing local record. The displayed name is deduplicated
// with a random `#tag` suffix, team members are balanced by count (ties to
// red), and the session record's players_now is updated.
func (pc *PlayerController) AddPlayer(record *PlayerRecord) (*LocalPlayer, error) {
	if existing, ok := pc.players[record.ID]; ok {
		return existing, nil
	}
	if pc.session.PlayersMax > 0 && pc.PlayerCount() >= pc.session.PlayersMax {
		return nil, fmt.Errorf("%w: max players limit was reached", ErrPlayerJoinRefused)
	}

	player := newLocalPlayer(record, pc.provider)
	pc.claimDisplayedName(player)
	pc.players[record.ID] = player
	pc.order = append(pc.order, record.ID)

	if pc.opts.TeamMode {
		team := pc.teams[TeamRed]
		player.TeamName = TeamRed
		if len(pc.teams[TeamRed].players) > len(pc.teams[TeamBlue].players) {
			team = pc.teams[TeamBlue]
			player.TeamName = TeamBlue
		}
		team.addPlayer(player)
	}

	if err := pc.updateSessionRecord(); err != nil {
		return nil, err
	}
	return player, nil
}

// RemovePlayer drops a player from the session, adjusting the ready and
// voted counters and restoring the original displayed name. A missing
// player is a programmer error.
func (pc *PlayerController) RemovePlayer(record *PlayerRecord) error {
	player, ok := pc.players[record.ID]
	if !ok {
		return fmt.Errorf("remove player: player %d is not in session", record.ID)
	}
	delete(pc.players, record.ID)
	for i, id := range pc.order {
		if id == record.ID {
			pc.order = append(pc.order[:i], pc.order[i+1:]...)
			break
		}
	}
	if player.IsReady {
		pc.readyCount--
	}
	if player.VotedFor != "" {
		pc.votedCount--
	}
	pc.releaseDisplayedName(player)

	if pc.opts.TeamMode {
		pc.teams[player.TeamName].removePlayer(player)
	}
	return pc.updateSessionRecord()
}

// GetPlayer looks up the local player for a durable record.
func (pc *PlayerController) GetPlayer(record *PlayerRecord) (*LocalPlayer, error) {
	player, ok := pc.players[record.ID]
	if !ok {
		return nil, fmt.Errorf("player %d is not in session", record.ID)
	}
	return player, nil
}

// AnyPlayer returns some present player, or nil when the session is empty.
func (pc *PlayerController) AnyPlayer() *LocalPlayer {
	if len(pc.order) == 0 {
		return nil
	}
	return pc.players[pc.order[0]]
}

// SetReadyState flips a player's ready flag, touching the counter only on
// actual transitions.
func (pc *PlayerController) SetReadyState(player *LocalPlayer, ready bool) {
	if player.IsReady == ready {
		return
	}
	if ready {
		pc.readyCount++
	} else {
		pc.readyCount--
	}
	player.IsReady = ready
}

// SetPlayerVote records a mode vote. The first recognized vote per player
// increments the voted counter; later votes replace the choice without
// double counting.
func (pc *PlayerController) SetPlayerVote(player *LocalPlayer, vote string) error {
	if _, ok := ModeCode(vote); !ok {
		return fmt.Errorf("%w: cannot select mode %q", ErrInvalidModeChoice, vote)
	}
	if player.VotedFor == "" {
		pc.votedCount++
	}
	player.VotedFor = vote
	return nil
}

// SetPlayerTeam moves a player to the named team. A no-op when the player
// is already there.
func (pc *PlayerController) SetPlayerTeam(player *LocalPlayer, team string) error {
	if !pc.opts.TeamMode {
		return fmt.Errorf("%w: session has no teams", ErrInvalidOperation)
	}
	target, ok := pc.teams[team]
	if !ok {
		return fmt.Errorf("%w: unknown team %q", ErrInvalidMessage, team)
	}
	if player.TeamName == team {
		return nil
	}
	pc.teams[player.TeamName].removePlayer(player)
	target.addPlayer(player)
	player.TeamName = team
	return nil
}

// Votes returns the current per-mode vote counts.
func (pc *PlayerController) Votes() map[string]int {
	votes := make(map[string]int)
	for _, p := range pc.players {
		if p.VotedFor != "" {
			votes[p.VotedFor]++
		}
	}
	return votes
}

// SaveResults serializes every local player into a result row and hands the
// batch to the repository.
func (pc *PlayerController) SaveResults() error {
	results := make([]Result, 0, len(pc.order))
	for _, player := range pc.Players() {
		row := Result{
			SessionID:      pc.session.ID,
			PlayerID:       player.Record.ID,
			Score:          player.Score,
			Speed:          player.Speed,
			MistakeRatio:   player.MistakeRatio,
			CorrectWords:   player.CorrectWords,
			IncorrectWords: player.IncorrectWords,
		}
		if player.IsWinner != nil {
			row.IsWinner = *player.IsWinner
		}
		if pc.opts.TeamMode {
			row.TeamName = player.TeamName
		}
		results = append(results, row)
	}
	return pc.repo.SaveResults(pc.session.ID, results)
}

func (pc *PlayerController) updateSessionRecord() error {
	pc.session.PlayersNow = pc.PlayerCount()
	return pc.repo.SetPlayersNow(pc.session.ID, pc.session.PlayersNow)
}

// claimDisplayedName makes the player's displayed name unique within the
// session by appending a random `#tag` suffix until it no longer collides.
func (pc *PlayerController) claimDisplayedName(player *LocalPlayer) {
	player.oldDisplayedName = player.DisplayedName
	name := player.DisplayedName
	for {
		if _, taken := pc.uniqueNames[name]; !taken {
			break
		}
		name = player.oldDisplayedName + "#" + nameTag()
	}
	player.DisplayedName = name
	pc.uniqueNames[name] = struct{}{}
}

func (pc *PlayerController) releaseDisplayedName(player *LocalPlayer) {
	delete(pc.uniqueNames, player.DisplayedName)
	player.DisplayedName = player.oldDisplayedName
}

func nameTag() string {
	var buf [3]byte
	rand.Read(buf[:])
	return base64.RawURLEncoding.EncodeToString(buf[:])
}
