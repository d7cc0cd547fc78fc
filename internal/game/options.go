package game

// Win conditions. Best-score compares final scores, best-time compares the
// time each competitor has left, survival ends when at most one competitor
// is still in.
const (
	WinConditionBestScore = "PointsCompetition"
	WinConditionBestTime  = "Race"
	WinConditionSurvived  = "Survival"
)

// Persistent one-letter mode codes and their wire labels. Codes are what the
// repository stores; labels are what clients see and vote with.
const (
	ModeSingle   = "s"
	ModeIronwall = "i"
	ModeTugOfWar = "t"
	ModeEndless  = "e"
)

const (
	ModeLabelSingle   = "single"
	ModeLabelIronwall = "ironwall"
	ModeLabelTugOfWar = "tugofwar"
	ModeLabelEndless  = "endless"
)

// ModeLabels lists the selectable mode labels in their canonical order.
var ModeLabels = []string{
	ModeLabelSingle,
	ModeLabelIronwall,
	ModeLabelTugOfWar,
	ModeLabelEndless,
}

var modeCodeByLabel = map[string]string{
	ModeLabelSingle:   ModeSingle,
	ModeLabelIronwall: ModeIronwall,
	ModeLabelTugOfWar: ModeTugOfWar,
	ModeLabelEndless:  ModeEndless,
}

var modeLabelByCode = map[string]string{
	ModeSingle:   ModeLabelSingle,
	ModeIronwall: ModeLabelIronwall,
	ModeTugOfWar: ModeLabelTugOfWar,
	ModeEndless:  ModeLabelEndless,
}

// ModeCode maps a wire label to its one-letter persistent code. The second
// return value is false for unknown labels.
func ModeCode(label string) (string, bool) {
	code, ok := modeCodeByLabel[label]
	return code, ok
}

// ModeLabel maps a one-letter persistent code to its wire label.
func ModeLabel(code string) (string, bool) {
	label, ok := modeLabelByCode[code]
	return label, ok
}

// GameOptions are immutable for the lifetime of a session and drive every
// mode-specific code path in the controller.
type GameOptions struct {
	// GameDuration is the game length in seconds; 0 means untimed.
	GameDuration int
	WinCondition string
	TeamMode     bool
	// SpeedUpPercent makes time-left decay non-linearly: elapsed seconds
	// are raised to 1+SpeedUpPercent/100 before differencing per tick.
	SpeedUpPercent float64
	// PointsDifference ends the game when the score gap between the top
	// two competitors reaches this value; 0 disables the trigger.
	PointsDifference int
	// TimePerWord adds TimePerWord*len(word) seconds of time-left per
	// correct word, clamped to GameDuration.
	TimePerWord float64
	StrictMode  bool
	StartDelay  float64
}

// OptionsForSession derives the game options from the session's mode.
func OptionsForSession(session *Session) GameOptions {
	opts := GameOptions{
		GameDuration: 60,
		WinCondition: WinConditionBestScore,
	}
	switch session.Mode {
	case ModeSingle:
	case ModeIronwall:
		opts.StrictMode = true
	case ModeEndless:
		opts.GameDuration = 30
		opts.WinCondition = WinConditionSurvived
		opts.TimePerWord = 0.5
		opts.SpeedUpPercent = 15.0
	case ModeTugOfWar:
		opts.GameDuration = 0
		opts.TeamMode = true
		opts.PointsDifference = 50
	}
	if session.PlayersMax != 1 {
		opts.StartDelay = 3
	}
	return opts
}
