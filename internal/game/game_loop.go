package game

import (
	"context"
	"sort"
	"time"

	"slether-arena/internal/protocol"
	"slether-arena/internal/telemetry"
)

// Run drives the world at the configured tick rate until ctx is done.
// Joins, leaves and intents are applied between ticks on this goroutine.
// The timer is re-armed after each step, so a slow tick delays the next
// one instead of triggering catch-up ticks.
func (w *World) Run(ctx context.Context) error {
	period := w.cfg.TickPeriod()
	timer := time.NewTimer(period)
	defer timer.Stop()
	defer close(w.done)
	w.log.Info("game loop started", "tick_rate_hz", w.cfg.World.TickRateHz, "bots", w.cfg.Bot.Count, "food", w.food.Len())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case env := <-w.inbox:
			w.applyIntent(env)
		case <-timer.C:
			w.Step(time.Now())
			timer.Reset(period)
		}
	}
}

// Step executes a single tick and returns the snapshot it broadcast.
func (w *World) Step(now time.Time) protocol.TickSnapshot {
	w.tick++
	w.perf.StartTick()

	// 1. Promote humans whose respawn delay has elapsed
	w.perf.StartPhase(telemetry.PhaseRespawn)
	w.promoteRespawns(now)

	// 2. Periodic maintenance
	w.perf.StartPhase(telemetry.PhaseMaintenance)
	if w.tick%uint64(w.cfg.World.PlayerGridEvery) == 0 {
		w.rebuildPlayerGrid()
	}
	if w.tick%uint64(w.cfg.Food.GCEveryTicks) == 0 {
		if n := w.food.ExpireLoot(now); n > 0 {
			w.log.Debug("expired loot", "count", n)
		}
	}

	ids := w.liveIDs()

	// 3. Bot planning, staggered across ticks
	w.perf.StartPhase(telemetry.PhaseAI)
	for _, id := range ids {
		a := w.agents[id]
		if a.IsBot && w.plansThisTick(a) {
			w.isolate("ai", id, func() { w.planBot(a) })
		}
	}

	// 4. Turn, move, grow, eat
	w.perf.StartPhase(telemetry.PhaseIntegrate)
	for _, id := range ids {
		a := w.agents[id]
		w.isolate("integrate", id, func() { w.integrate(a, now) })
	}

	// 5. Collision detection
	w.perf.StartPhase(telemetry.PhaseCollide)
	deaths := w.detectCollisions(ids)

	// 6. Drop loot, respawn bots, queue humans
	w.perf.StartPhase(telemetry.PhaseDeaths)
	w.resolveDeaths(deaths, now)

	// 7. Broadcast
	w.perf.StartPhase(telemetry.PhaseSnapshot)
	snap := w.snapshot()
	w.pub.Broadcast(snap)

	w.perf.EndTick()
	w.statusTicks++
	w.maybeReportStatus(now)
	return snap
}

func (w *World) promoteRespawns(now time.Time) {
	for _, id := range w.respawns.PopDue(now) {
		if _, connected := w.sessions[id]; !connected {
			continue
		}
		if _, live := w.agents[id]; live {
			continue
		}
		w.spawnHuman(id)
		w.pub.Send(id, protocol.InitIdentity{Type: protocol.MsgIdentity, ID: id})
	}
}

func (w *World) resolveDeaths(deaths map[string]death, now time.Time) {
	ids := make([]string, 0, len(deaths))
	for id := range deaths {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Resolve killer names first: a killer may die and be removed this tick.
	killers := make(map[string]string, len(deaths))
	for _, d := range deaths {
		if k, ok := w.agents[d.killer]; ok {
			killers[d.killer] = k.Name
		}
	}

	for _, id := range ids {
		a, ok := w.agents[id]
		if !ok {
			continue
		}
		d := deaths[id]
		drops := w.dropLoot(a, now)

		ev := DeathEvent{
			Tick:   w.tick,
			At:     now,
			ID:     id,
			Name:   a.Name,
			IsBot:  a.IsBot,
			Score:  int(a.Length),
			Cause:  d.cause.String(),
			Killer: killers[d.killer],
			Drops:  drops,
		}
		w.log.Debug("agent died", "id", id, "name", a.Name, "cause", ev.Cause, "killer", ev.Killer, "score", ev.Score, "drops", drops)
		for _, s := range w.sink {
			s.RecordDeath(ev)
		}

		if a.IsBot {
			w.respawn(a)
			continue
		}
		delete(w.agents, id)
		w.pub.Send(id, protocol.DeathNotice{Type: protocol.MsgDeath, Score: ev.Score})
		w.respawns.Push(id, now.Add(w.cfg.Snake.RespawnDelay))
	}
}

// dropLoot scatters loot along the body. Ambient food is evicted first so
// the drops fit under the cap.
func (w *World) dropLoot(a *Agent, now time.Time) int {
	fc := w.cfg.Food
	var drops []int
	for i := range a.Body {
		if w.rng.Float64() < fc.DropRatio {
			drops = append(drops, i)
		}
	}
	if n := w.food.MakeRoom(len(drops)); n > 0 {
		w.log.Debug("evicted ambient food", "count", n)
	}
	for _, i := range drops {
		p := a.Body[i]
		w.food.Spawn(&p, fc.LootValue, fc.LootScatter, true, now)
	}
	return len(drops)
}

func (w *World) maybeReportStatus(now time.Time) {
	elapsed := now.Sub(w.lastStatus)
	if elapsed < w.cfg.World.LogInterval {
		return
	}
	st := w.perf.Stats()
	tps := float64(w.statusTicks) / elapsed.Seconds()
	w.log.Info("[STATUS]",
		"tick", w.tick,
		"tps", tps,
		"load_ms", telemetry.Ms(st.AvgTickDuration),
		"max_ms", telemetry.Ms(st.MaxTickDuration),
		"ai_ms", telemetry.Ms(st.PhaseAvg[telemetry.PhaseAI]),
		"integrate_ms", telemetry.Ms(st.PhaseAvg[telemetry.PhaseIntegrate]),
		"collide_ms", telemetry.Ms(st.PhaseAvg[telemetry.PhaseCollide]),
		"agents", len(w.agents),
		"food", w.food.Len(),
		"respawning", w.respawns.Len(),
	)
	if w.perfOut != nil {
		rec := telemetry.NewPerfRecord(now, w.tick, tps, st)
		rec.Agents = len(w.agents)
		rec.Food = w.food.Len()
		rec.RespawnQueue = w.respawns.Len()
		if err := w.perfOut.WritePerf(rec); err != nil {
			w.log.Warn("perf output failed", "err", err)
		}
	}
	w.lastStatus = now
	w.statusTicks = 0
}
