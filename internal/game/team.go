package game

// Team names; the only two teams a session ever has.
const (
	TeamRed  = "red"
	TeamBlue = "blue"
)

// LocalTeam groups local players when team mode is on. Score, speed,
// out-state and winner-state derive from the members; time-left is the
// team's own when the mode is timed.
type LocalTeam struct {
	Name string

	// TimeLeft is nil until the game starts in a timed mode.
	TimeLeft *float64

	players map[int64]*LocalPlayer
	order   []int64
}

func newLocalTeam(name string) *LocalTeam {
	return &LocalTeam{
		Name:    name,
		players: make(map[int64]*LocalPlayer),
	}
}

func (t *LocalTeam) addPlayer(p *LocalPlayer) {
	t.players[p.ID] = p
	t.order = append(t.order, p.ID)
}

func (t *LocalTeam) removePlayer(p *LocalPlayer) {
	delete(t.players, p.ID)
	for i, id := range t.order {
		if id == p.ID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Players returns the members in join order.
func (t *LocalTeam) Players() []*LocalPlayer {
	out := make([]*LocalPlayer, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.players[id])
	}
	return out
}

// Score is the sum of member scores.
func (t *LocalTeam) Score() int {
	total := 0
	for _, p := range t.players {
		total += p.Score
	}
	return total
}

// Speed is the mean of member speeds, 0 for an empty team.
func (t *LocalTeam) Speed() float64 {
	if len(t.players) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range t.players {
		total += p.Speed
	}
	return total / float64(len(t.players))
}

// IsOut reports whether every member is out.
func (t *LocalTeam) IsOut() bool {
	for _, p := range t.players {
		if !p.IsOut {
			return false
		}
	}
	return true
}

// IsWinner reports whether any member won.
func (t *LocalTeam) IsWinner() bool {
	for _, p := range t.players {
		if p.IsWinner != nil && *p.IsWinner {
			return true
		}
	}
	return false
}

func (t *LocalTeam) curScore() int { return t.Score() }

func (t *LocalTeam) curTimeLeft() float64 {
	if t.TimeLeft == nil {
		return 0
	}
	return *t.TimeLeft
}

func (t *LocalTeam) setTimeLeft(v float64) { t.TimeLeft = &v }

func (t *LocalTeam) curOut() bool { return t.IsOut() }

func (t *LocalTeam) setOut(out bool) {
	for _, p := range t.players {
		p.IsOut = out
	}
}

func (t *LocalTeam) setWinner(w bool) {
	for _, p := range t.players {
		p.setWinner(w)
	}
}

// competitor is what win conditions and the tick timekeeper operate on:
// a team in team mode, a player otherwise.
type competitor interface {
	curScore() int
	curTimeLeft() float64
	setTimeLeft(float64)
	curOut() bool
	setOut(bool)
	setWinner(bool)
}

var (
	_ competitor = (*LocalPlayer)(nil)
	_ competitor = (*LocalTeam)(nil)
)
