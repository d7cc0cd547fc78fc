package game

// Snapshot builds the competitors view broadcast to clients. The schema
// follows the session options: `{players: [...]}` normally, `{teams: {red,
// blue}}` in team mode, with time-left and out-flags present only when the
// mode calls for them. Keys are camelCase, matching the wire format.
func (pc *PlayerController) Snapshot(includeResults bool) map[string]any {
	if pc.opts.TeamMode {
		teams := make(map[string]any, len(pc.teams))
		for name, team := range pc.teams {
			teams[name] = pc.teamDict(team, includeResults)
		}
		return map[string]any{"teams": teams}
	}

	players := make([]map[string]any, 0, len(pc.order))
	for _, player := range pc.Players() {
		players = append(players, pc.PlayerSnapshot(player, includeResults))
	}
	return map[string]any{"players": players}
}

// PlayerSnapshot serializes one local player under the session's schema.
func (pc *PlayerController) PlayerSnapshot(player *LocalPlayer, includeResults bool) map[string]any {
	d := map[string]any{
		"id":            player.ID,
		"displayedName": player.DisplayedName,
		"score":         player.Score,
		"speed":         player.Speed,
		"isReady":       player.IsReady,
	}
	if pc.opts.TeamMode {
		d["teamName"] = player.TeamName
	} else if pc.opts.GameDuration > 0 {
		d["timeLeft"] = player.TimeLeft
	}
	if pc.opts.WinCondition == WinConditionSurvived {
		d["isOut"] = player.IsOut
	}
	if includeResults {
		d["correctWords"] = player.CorrectWords
		d["incorrectWords"] = player.IncorrectWords
		d["mistakeRatio"] = player.MistakeRatio
		d["isWinner"] = player.IsWinner
	}
	return d
}

func (pc *PlayerController) teamDict(team *LocalTeam, includeResults bool) map[string]any {
	players := make([]map[string]any, 0, len(team.order))
	for _, player := range team.Players() {
		players = append(players, pc.PlayerSnapshot(player, includeResults))
	}
	d := map[string]any{
		"players": players,
		"score":   team.Score(),
		"speed":   team.Speed(),
	}
	if pc.opts.GameDuration > 0 {
		d["timeLeft"] = team.TimeLeft
	}
	if pc.opts.WinCondition == WinConditionSurvived {
		d["isOut"] = team.IsOut()
	}
	return d
}

// resultsPlayers flattens the result-extended snapshot into a single player
// list, regardless of team mode.
func (pc *PlayerController) resultsPlayers() []map[string]any {
	if !pc.opts.TeamMode {
		players := make([]map[string]any, 0, len(pc.order))
		for _, player := range pc.Players() {
			players = append(players, pc.PlayerSnapshot(player, true))
		}
		return players
	}
	var players []map[string]any
	for _, name := range []string{TeamRed, TeamBlue} {
		for _, player := range pc.teams[name].Players() {
			players = append(players, pc.PlayerSnapshot(player, true))
		}
	}
	return players
}
