package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/typewars/typewars-server/internal/metrics"
	"github.com/typewars/typewars-server/internal/words"
)

// Controller states.
const (
	StatePreparing  = "preparing"
	StatePlaying    = "playing"
	StateVoting     = "voting"
	StateTerminated = "terminated"
)

type handlerFunc func(player *PlayerRecord, payload any) ([]Event, error)

// handlerEntry configures the middleware chain around one event handler:
// drop events from absent players, append a players-update, run the
// stage-transition check after the handler's direct effects.
type handlerEntry struct {
	fn             handlerFunc
	requiresPlayer bool
	updatesPlayers bool
	updatesStage   bool
}

// Controller owns one session's state machine. All player events and ticks
// are linearized through its mutex; everything it emits is addressed either
// to the triggering player or to the whole session.
type Controller struct {
	mu sync.Mutex

	sessionID string
	repo      Repository
	session   *Session
	state     string
	opts      GameOptions
	provider  *words.Provider
	players   *PlayerController
	handlers  map[string]handlerEntry

	modesAvailable []string
	gameBeginsAt   *time.Time
	gameEndsAt     time.Time
	lastTick       time.Time
	hostID         *int64
	newSessionID   string
	results        []map[string]any

	now func() time.Time
	rng *rand.Rand
}

// NewController loads the session record and prepares a controller for it.
// Sessions that already started or finished refuse a controller with
// ErrGameOver.
func NewController(repo Repository, provider *words.Provider, sessionID string) (*Controller, error) {
	session, err := repo.SessionByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.StartedAt != nil || session.Finished {
		return nil, ErrGameOver
	}

	c := &Controller{
		sessionID:      sessionID,
		repo:           repo,
		session:        session,
		state:          StatePreparing,
		provider:       provider,
		modesAvailable: ModeLabels,
		now:            time.Now,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.opts = OptionsForSession(session)
	c.players = NewPlayerController(session, repo, provider, c.opts)
	c.handlers = map[string]handlerEntry{
		EventPlayerJoined:     {fn: c.handleJoin, updatesPlayers: true},
		EventPlayerLeft:       {fn: c.handleLeave, requiresPlayer: true, updatesPlayers: true, updatesStage: true},
		EventPlayerReadyState: {fn: c.handleReady, requiresPlayer: true, updatesPlayers: true, updatesStage: true},
		EventPlayerWord:       {fn: c.handleWord, requiresPlayer: true, updatesPlayers: true},
		EventTriggerTick:      {fn: c.handleTick, updatesPlayers: true, updatesStage: true},
		EventPlayerModeVote:   {fn: c.handleVote, requiresPlayer: true, updatesStage: true},
		EventPlayerSwitchTeam: {fn: c.handleSwitchTeam, requiresPlayer: true, updatesPlayers: true},
	}
	return c, nil
}

// PlayerEvent is the single entry point: it dispatches one inbound event
// through the handler table and returns the outbound events in emission
// order.
func (c *Controller) PlayerEvent(ev Event) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, ok := ev.Data.(PlayerMessage)
	if !ok {
		return nil, fmt.Errorf("event data must be a PlayerMessage, got %T", ev.Data)
	}
	entry, ok := c.handlers[ev.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEventTypeNotDefined, ev.Type)
	}
	metrics.EventsProcessed.WithLabelValues(ev.Type).Inc()

	if entry.requiresPlayer && !c.playerExists(msg.Player) {
		return nil, nil
	}
	events, err := entry.fn(msg.Player, msg.Payload)
	if errors.Is(err, errDiscardedEvent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.updatesPlayers {
		events = append(events, c.playersUpdateEvent())
	}
	if entry.updatesStage {
		stageEvents, err := c.updateGameStage()
		if err != nil {
			return nil, err
		}
		events = append(events, stageEvents...)
	}
	return events, nil
}

// State reports the controller's current stage.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HostID returns the current host's player id, or nil when the session has
// no host.
func (c *Controller) HostID() *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hostID == nil {
		return nil
	}
	id := *c.hostID
	return &id
}

// SetHost nominates a present player as the session host.
func (c *Controller) SetHost(player *PlayerRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if player == nil {
		return errors.New("host must be a player record")
	}
	if !c.playerExists(player) {
		return fmt.Errorf("player %d is not in session", player.ID)
	}
	id := player.ID
	c.hostID = &id
	return nil
}

// Event handlers.

func (c *Controller) handleJoin(player *PlayerRecord, payload any) ([]Event, error) {
	password := ""
	switch p := payload.(type) {
	case nil:
	case JoinPayload:
		password = p.Password
	default:
		return nil, fmt.Errorf("%w: unexpected join payload", ErrInvalidMessage)
	}
	if err := c.checkPlayerJoin(player, password); err != nil {
		return nil, err
	}
	local, err := c.players.AddPlayer(player)
	if err != nil {
		return nil, err
	}
	return []Event{c.initialStateEvent(local)}, nil
}

func (c *Controller) handleLeave(player *PlayerRecord, _ any) ([]Event, error) {
	var events []Event
	if err := c.players.RemovePlayer(player); err != nil {
		return nil, err
	}
	if c.isHost(player) {
		events = append(events, c.electNewHost())
	}
	if c.state == StateVoting && c.players.PlayerCount() > 0 {
		events = append(events, c.votesUpdateEvent())
	}
	return events, nil
}

func (c *Controller) handleReady(player *PlayerRecord, payload any) ([]Event, error) {
	if c.state != StatePreparing {
		return nil, fmt.Errorf("%w: cannot change ready state during %s stage",
			ErrInvalidOperation, c.state)
	}
	ready, ok := payload.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: ready state must be a boolean", ErrInvalidMessage)
	}
	local, err := c.players.GetPlayer(player)
	if err != nil {
		return nil, err
	}
	c.players.SetReadyState(local, ready)
	return nil, nil
}

func (c *Controller) handleWord(player *PlayerRecord, payload any) ([]Event, error) {
	if c.state != StatePlaying {
		return nil, fmt.Errorf("%w: cannot submit words during %s stage",
			ErrInvalidOperation, c.state)
	}
	word, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("%w: word must be a string", ErrInvalidMessage)
	}
	local, err := c.players.GetPlayer(player)
	if err != nil {
		return nil, err
	}
	if local.IsOut {
		return nil, fmt.Errorf("%w: cannot submit words when out", ErrInvalidOperation)
	}

	if word == local.NextExpectedWord() {
		wordLength := utf8.RuneCountInString(word)
		local.Score += wordLength
		local.TotalWordLength += wordLength
		eta := c.now().Sub(*c.session.StartedAt).Seconds()
		local.Speed = float64(local.TotalWordLength) / eta
		local.CorrectWords++
		metrics.WordsSubmitted.WithLabelValues("correct").Inc()

		if c.opts.TimePerWord > 0 {
			bonus := c.opts.TimePerWord * float64(wordLength)
			target := c.bonusTarget(local)
			target.setTimeLeft(math.Min(
				float64(c.opts.GameDuration),
				target.curTimeLeft()+bonus,
			))
		}
	} else {
		local.IncorrectWords++
		metrics.WordsSubmitted.WithLabelValues("incorrect").Inc()
	}
	return []Event{c.newWordEvent()}, nil
}

func (c *Controller) handleTick(player *PlayerRecord, _ any) ([]Event, error) {
	if !c.isHost(player) {
		return nil, errDiscardedEvent
	}

	switch c.state {
	case StatePreparing:
		if c.gameBeginsAt == nil || c.now().Before(*c.gameBeginsAt) {
			return nil, errDiscardedEvent
		}
		ev, err := c.startGame()
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil

	case StatePlaying:
		if c.opts.GameDuration > 0 {
			prevTick := c.lastTick
			if prevTick.IsZero() {
				prevTick = *c.session.StartedAt
			}
			c.lastTick = c.now()

			exp := 1 + c.opts.SpeedUpPercent/100
			nowScaled := math.Pow(c.lastTick.Sub(*c.session.StartedAt).Seconds(), exp)
			prevScaled := math.Pow(prevTick.Sub(*c.session.StartedAt).Seconds(), exp)

			survival := c.opts.WinCondition == WinConditionSurvived
			for _, comp := range c.competitors() {
				comp.setTimeLeft(comp.curTimeLeft() - (nowScaled - prevScaled))
				if survival && comp.curTimeLeft() <= 0 {
					comp.setTimeLeft(0)
					comp.setOut(true)
				}
			}
		}
		return nil, nil

	case StateVoting:
		return nil, errDiscardedEvent
	}
	return nil, nil
}

func (c *Controller) handleVote(player *PlayerRecord, payload any) ([]Event, error) {
	vote, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("%w: vote must be a string", ErrInvalidMessage)
	}
	if c.state != StateVoting {
		return nil, nil
	}
	if !c.modeAvailable(vote) {
		return []Event{c.modesAvailableEvent()}, nil
	}
	local, err := c.players.GetPlayer(player)
	if err != nil {
		return nil, err
	}
	if err := c.players.SetPlayerVote(local, vote); err != nil {
		return nil, err
	}
	return []Event{c.votesUpdateEvent()}, nil
}

func (c *Controller) handleSwitchTeam(player *PlayerRecord, payload any) ([]Event, error) {
	if c.state != StatePreparing {
		return nil, fmt.Errorf("%w: cannot switch teams during %s stage",
			ErrInvalidOperation, c.state)
	}
	team, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("%w: team must be a string", ErrInvalidMessage)
	}
	local, err := c.players.GetPlayer(player)
	if err != nil {
		return nil, err
	}
	return nil, c.players.SetPlayerTeam(local, team)
}

// Outbound event constructors.

func (c *Controller) initialStateEvent(local *LocalPlayer) Event {
	data := map[string]any{
		"player": c.players.PlayerSnapshot(local, false),
		"words":  c.provider.Words(),
	}
	for k, v := range c.players.Snapshot(false) {
		data[k] = v
	}
	return Event{Type: EventInitialState, Target: TargetPlayer, Data: data}
}

func (c *Controller) playersUpdateEvent() Event {
	return Event{Type: EventPlayersUpdate, Target: TargetAll, Data: c.players.Snapshot(false)}
}

func (c *Controller) gameBeginsEvent() Event {
	return Event{Type: EventGameBegins, Target: TargetAll, Data: c.opts.StartDelay}
}

func (c *Controller) newWordEvent() Event {
	return Event{Type: EventNewWord, Target: TargetAll, Data: c.provider.NextWord()}
}

func (c *Controller) votesUpdateEvent() Event {
	votes := c.players.Votes()
	tally := make([]map[string]any, 0, len(ModeLabels))
	for _, label := range ModeLabels {
		tally = append(tally, map[string]any{
			"mode":      label,
			"voteCount": votes[label],
		})
	}
	return Event{Type: EventVotesUpdate, Target: TargetAll, Data: tally}
}

func (c *Controller) modesAvailableEvent() Event {
	return Event{Type: EventModesAvailable, Target: TargetPlayer, Data: c.modesAvailable}
}

// Stage transitions.

func (c *Controller) updateGameStage() ([]Event, error) {
	switch {
	case c.canBeginPlaying():
		return c.enterPlayingStage()
	case c.canBeginVoting():
		ev, err := c.gameOver()
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	case c.canEnterNextGame():
		ev, err := c.createNewGame()
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}
	return nil, nil
}

func (c *Controller) canBeginPlaying() bool {
	if c.state != StatePreparing {
		return false
	}
	count := c.players.PlayerCount()
	return count > 0 && c.players.ReadyCount() >= count
}

func (c *Controller) enterPlayingStage() ([]Event, error) {
	events := []Event{c.gameBeginsEvent()}
	if c.opts.StartDelay <= 0 {
		ev, err := c.startGame()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	} else {
		beginsAt := c.now().Add(time.Duration(c.opts.StartDelay * float64(time.Second)))
		c.gameBeginsAt = &beginsAt
	}
	return events, nil
}

func (c *Controller) startGame() (Event, error) {
	startedAt := c.now()
	if err := c.repo.MarkStarted(c.sessionID, startedAt); err != nil {
		return Event{}, err
	}
	c.state = StatePlaying
	c.session.StartedAt = &startedAt

	if c.opts.GameDuration > 0 {
		c.gameEndsAt = startedAt.Add(time.Duration(c.opts.GameDuration) * time.Second)
		for _, comp := range c.competitors() {
			comp.setTimeLeft(float64(c.opts.GameDuration))
		}
	}
	return Event{Type: EventStartGame, Target: TargetAll, Data: map[string]any{}}, nil
}

func (c *Controller) canBeginVoting() bool {
	if c.state != StatePlaying {
		return false
	}
	if c.players.PlayerCount() <= 0 {
		return true
	}

	competitors := c.competitors()
	if c.opts.WinCondition == WinConditionSurvived {
		outCount := 0
		for _, comp := range competitors {
			if comp.curOut() {
				outCount++
			}
		}
		return outCount > 0 && outCount >= len(competitors)-1
	}

	if c.opts.GameDuration > 0 && !c.gameEndsAt.After(c.now()) {
		return true
	}

	if c.opts.PointsDifference > 0 {
		distinct := make(map[int]struct{})
		for _, comp := range competitors {
			distinct[comp.curScore()] = struct{}{}
		}
		if len(distinct) >= 2 {
			top, second := math.MinInt, math.MinInt
			for score := range distinct {
				if score > top {
					top, second = score, top
				} else if score > second {
					second = score
				}
			}
			if top-second >= c.opts.PointsDifference {
				return true
			}
		}
	}
	return false
}

func (c *Controller) gameOver() (Event, error) {
	finishedAt := c.now()
	if err := c.repo.MarkFinished(c.sessionID, finishedAt); err != nil {
		return Event{}, err
	}
	c.state = StateVoting
	c.session.Finished = true
	c.session.FinishedAt = &finishedAt

	c.markWinners()
	for _, player := range c.players.Players() {
		if total := player.CorrectWords + player.IncorrectWords; total > 0 {
			player.MistakeRatio = float64(player.IncorrectWords) / float64(total)
		}
	}
	c.results = c.players.resultsPlayers()
	if err := c.players.SaveResults(); err != nil {
		return Event{}, fmt.Errorf("persist results: %w", err)
	}

	if label, ok := ModeLabel(c.session.Mode); ok {
		metrics.GamesFinished.WithLabelValues(label).Inc()
	}
	return Event{Type: EventGameOver, Target: TargetAll, Data: c.results}, nil
}

func (c *Controller) markWinners() {
	competitors := c.competitors()
	if len(competitors) == 0 {
		return
	}
	switch c.opts.WinCondition {
	case WinConditionBestScore:
		best := competitors[0].curScore()
		for _, comp := range competitors[1:] {
			if comp.curScore() > best {
				best = comp.curScore()
			}
		}
		for _, comp := range competitors {
			comp.setWinner(comp.curScore() == best)
		}
	case WinConditionBestTime:
		best := competitors[0].curTimeLeft()
		for _, comp := range competitors[1:] {
			if comp.curTimeLeft() > best {
				best = comp.curTimeLeft()
			}
		}
		for _, comp := range competitors {
			comp.setWinner(comp.curTimeLeft() == best)
		}
	case WinConditionSurvived:
		for _, comp := range competitors {
			comp.setWinner(!comp.curOut())
		}
	}
	if len(competitors) == 1 {
		competitors[0].setWinner(true)
	}
}

func (c *Controller) canEnterNextGame() bool {
	if c.state != StateVoting {
		return false
	}
	count := c.players.PlayerCount()
	return count > 0 && c.players.VotedCount() >= count
}

func (c *Controller) createNewGame() (Event, error) {
	votes := c.players.Votes()
	maxCount := 0
	for _, n := range votes {
		if n > maxCount {
			maxCount = n
		}
	}
	var leaders []string
	for _, label := range ModeLabels {
		if votes[label] == maxCount {
			leaders = append(leaders, label)
		}
	}
	winner := leaders[c.rng.Intn(len(leaders))]
	code, _ := ModeCode(winner)

	successor, err := c.repo.CreateSuccessor(c.session, code)
	if err != nil {
		return Event{}, err
	}
	c.newSessionID = successor.ID
	c.state = StateTerminated
	return Event{Type: EventNewGame, Target: TargetAll, Data: c.newSessionID}, nil
}

// Helpers.

func (c *Controller) checkPlayerJoin(player *PlayerRecord, password string) error {
	if c.session.PlayersMax > 0 && c.players.PlayerCount() >= c.session.PlayersMax {
		return fmt.Errorf("%w: max players limit was reached", ErrPlayerJoinRefused)
	}
	if c.state != StatePreparing {
		return fmt.Errorf("%w: game already in progress", ErrPlayerJoinRefused)
	}
	if c.playerExists(player) {
		return fmt.Errorf("%w: player is already in the session", ErrPlayerJoinRefused)
	}
	if c.session.PasswordHash != "" && !c.repo.CheckPassword(c.session, password) {
		return fmt.Errorf("%w: wrong password", ErrPlayerJoinRefused)
	}
	return nil
}

func (c *Controller) playerExists(player *PlayerRecord) bool {
	if player == nil {
		return false
	}
	_, err := c.players.GetPlayer(player)
	return err == nil
}

func (c *Controller) isHost(player *PlayerRecord) bool {
	return c.hostID != nil && player != nil && *c.hostID == player.ID
}

// electNewHost picks any remaining player as the new host; with nobody left
// the host becomes nil. NEW_HOST fires either way.
func (c *Controller) electNewHost() Event {
	next := c.players.AnyPlayer()
	if next == nil {
		c.hostID = nil
		return Event{Type: EventNewHost, Target: TargetAll, Data: nil}
	}
	id := next.ID
	c.hostID = &id
	return Event{Type: EventNewHost, Target: TargetAll, Data: id}
}

func (c *Controller) competitors() []competitor {
	if c.opts.TeamMode {
		return []competitor{c.players.teams[TeamRed], c.players.teams[TeamBlue]}
	}
	players := c.players.Players()
	comps := make([]competitor, 0, len(players))
	for _, p := range players {
		comps = append(comps, p)
	}
	return comps
}

func (c *Controller) bonusTarget(local *LocalPlayer) competitor {
	if c.opts.TeamMode {
		return c.players.teams[local.TeamName]
	}
	return local
}

func (c *Controller) modeAvailable(label string) bool {
	for _, mode := range c.modesAvailable {
		if mode == label {
			return true
		}
	}
	return false
}
