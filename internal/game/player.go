package game

import "github.com/typewars/typewars-server/internal/words"

// LocalPlayer is the volatile per-session record for one participant. It is
// created on join and discarded on leave; only Result rows outlive it.
type LocalPlayer struct {
	Record *PlayerRecord

	ID            int64
	DisplayedName string
	// oldDisplayedName keeps the pre-deduplication name for restore on
	// leave.
	oldDisplayedName string

	Score           int
	TotalWordLength int
	Speed           float64
	CorrectWords    int
	IncorrectWords  int
	MistakeRatio    float64
	IsReady         bool
	TeamName        string
	// VotedFor holds the mode label this player voted for, empty until
	// the first recognized vote.
	VotedFor string

	// TimeLeft is nil until the game starts in a timed mode.
	TimeLeft *float64
	IsOut    bool
	// IsWinner stays nil until winners are marked at game over.
	IsWinner *bool

	provider *words.Provider
	nextWord int
}

func newLocalPlayer(record *PlayerRecord, provider *words.Provider) *LocalPlayer {
	return &LocalPlayer{
		Record:        record,
		ID:            record.ID,
		DisplayedName: record.DisplayedName,
		provider:      provider,
	}
}

// NextExpectedWord consumes and returns the player's next expected word.
// Each player advances independently over the session's shared list, which
// extends on demand.
func (p *LocalPlayer) NextExpectedWord() string {
	word := p.provider.WordAt(p.nextWord)
	p.nextWord++
	return word
}

// NextWordPosition reports how many words this player has consumed.
func (p *LocalPlayer) NextWordPosition() int {
	return p.nextWord
}

func (p *LocalPlayer) curScore() int { return p.Score }

func (p *LocalPlayer) curTimeLeft() float64 {
	if p.TimeLeft == nil {
		return 0
	}
	return *p.TimeLeft
}

func (p *LocalPlayer) setTimeLeft(v float64) { p.TimeLeft = &v }

func (p *LocalPlayer) curOut() bool { return p.IsOut }

func (p *LocalPlayer) setOut(out bool) { p.IsOut = out }

func (p *LocalPlayer) setWinner(w bool) { p.IsWinner = &w }
