package game

import (
	"sort"

	"slether-arena/internal/protocol"
)

// snapshot re-serializes every live agent and drains the food delta.
func (w *World) snapshot() protocol.TickSnapshot {
	agents := make(map[string]protocol.AgentDTO, len(w.agents))
	for id, a := range w.agents {
		// An agent whose step panicked may be left without a body.
		if len(a.Body) == 0 {
			continue
		}
		agents[id] = a.ToDTO(w.cfg.Debug)
	}
	return protocol.TickSnapshot{
		Type:        protocol.MsgState,
		Tick:        w.tick,
		Agents:      agents,
		Food:        w.food.Drain(),
		Leaderboard: w.Leaderboard(),
	}
}

// Leaderboard returns the top agents by length. Ties break by name, then id.
func (w *World) Leaderboard() []protocol.LeaderboardEntry {
	agents := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		a, b := agents[i], agents[j]
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	if n := w.cfg.World.LeaderboardSize; len(agents) > n {
		agents = agents[:n]
	}
	entries := make([]protocol.LeaderboardEntry, len(agents))
	for i, a := range agents {
		entries[i] = protocol.LeaderboardEntry{ID: a.ID, Name: a.Name, Score: int(a.Length)}
	}
	return entries
}
