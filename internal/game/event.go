package game

// Client-originated event types. PlayerJoined, PlayerLeft and TriggerTick
// are reserved: they are produced by the connection endpoint itself and
// must never arrive over the wire.
const (
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventPlayerReadyState = "ready_state"
	EventPlayerWord       = "word"
	EventPlayerModeVote   = "vote"
	EventPlayerSwitchTeam = "switch_team"
	EventTriggerTick      = "tick"
)

// Server-originated event types.
const (
	EventInitialState   = "initial_state"
	EventPlayersUpdate  = "players_update"
	EventGameBegins     = "game_begins"
	EventStartGame      = "start_game"
	EventNewWord        = "new_word"
	EventGameOver       = "game_over"
	EventModesAvailable = "modes_available"
	EventVotesUpdate    = "votes_update"
	EventNewGame        = "new_game"
	EventNewHost        = "new_host"
	EventError          = "error"
)

// Event delivery targets.
const (
	TargetAll    = "all"
	TargetPlayer = "player"
)

// Event is the unit of communication between the connection endpoints and a
// game controller. Inbound events carry a PlayerMessage in Data; outbound
// events carry the payload that goes on the wire.
type Event struct {
	Type   string `json:"type"`
	Data   any    `json:"data"`
	Target string `json:"-"`
}

// PlayerMessage is the inbound event payload: the durable record of the
// player that triggered the event plus whatever the client sent.
type PlayerMessage struct {
	Player  *PlayerRecord
	Payload any
}

// JoinPayload accompanies a PLAYER_JOINED event.
type JoinPayload struct {
	Password string
}
