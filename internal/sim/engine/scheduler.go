package engine

import (
	"context"
	"time"

	"avocado.town/internal/persistence/store"
	"avocado.town/internal/protocol"
	"avocado.town/internal/sim/world"
)

// worldTick runs the once-per-decay-interval duties in a fixed order: calendar
// resets first, then item expiry and spawning, then damage.
func (e *Engine) worldTick(now time.Time) {
	e.dailyCheck(now)
	e.weeklyCheck(now)

	for _, it := range e.world.ExpireCollectibles(now, e.cfg.CoinLifetime()) {
		e.broadcastAll(protocol.EvItemExpired, it.ID)
	}

	if e.world.Total() >= e.cfg.DecayActivationScore &&
		e.world.ActiveItems(world.KindTrash) < e.cfg.MaxDecayItems &&
		e.rng.Float64() < e.cfg.DecaySpawnChance {
		e.spawn(world.KindTrash)
	}

	res := e.world.ApplyDecay()
	if res.Damage == 0 {
		return
	}
	e.broadcastAll(protocol.EvDecayDamage, protocol.DecayDamageMsg{GlobalTotal: res.Clamped, Damage: res.Damage})
	if res.GameOver {
		e.finishGameOver("decay")
	}
}

// finishGameOver announces a reset the world has already applied and persists
// it right away rather than at the next checkpoint.
func (e *Engine) finishGameOver(reason string) {
	e.gameOvers++
	e.world.AdvanceStageFor(e.world.Total())
	msg := protocol.GameOverResetMsg{GlobalTotal: e.world.Total(), StageColor: e.world.Stage()}
	e.broadcastAll(protocol.EvGameOverReset, msg)

	g := e.globalState()
	e.submit("game-over", func(ctx context.Context, s store.Store) error {
		if err := s.SaveGlobal(ctx, g); err != nil {
			return err
		}
		return s.ResetScores(ctx)
	})
	e.record(protocol.EvGameOverReset, "", "", map[string]any{"reason": reason, "total": msg.GlobalTotal})
	e.log.Printf("game over reason=%s total=%d sessions=%d", reason, msg.GlobalTotal, e.world.NumPlayers())
}

func (e *Engine) dailyCheck(now time.Time) {
	day := store.DayKey(now)
	if !e.world.ResetDailyQuotas(day) {
		return
	}
	e.broadcastAll(protocol.EvDailyReset, nil)
	for _, c := range e.clients {
		if p, ok := e.world.Player(c.id); ok {
			e.sendTo(c.id, protocol.EvDailyProgress, p.TodayClicks())
		}
	}
	g := e.globalState()
	e.submit("daily-reset", func(ctx context.Context, s store.Store) error {
		if err := s.ResetDailyQuotas(ctx, day); err != nil {
			return err
		}
		return s.SaveGlobal(ctx, g)
	})
	e.record(protocol.EvDailyReset, "", "", map[string]string{"day": day})
	e.log.Printf("daily reset day=%s", day)
}

func (e *Engine) weeklyCheck(now time.Time) {
	week := store.WeekKey(now)
	if !e.world.RefillShards(week) {
		return
	}
	e.broadcastAll(protocol.EvPoolUpdate, e.world.ShardPool())
	g := e.globalState()
	e.submit("shard-refill", func(ctx context.Context, s store.Store) error {
		return s.SaveGlobal(ctx, g)
	})
	e.log.Printf("shard pool refilled week=%s pool=%d", week, e.world.ShardPool())
}

func (e *Engine) coinTick() {
	if e.world.ActiveItems(world.KindCoin) >= e.cfg.MaxCoins {
		return
	}
	if e.rng.Float64() < e.cfg.CoinSpawnChance {
		e.spawn(world.KindCoin)
	}
}

// checkpoint saves the aggregate and refreshes the leaderboard from the store.
func (e *Engine) checkpoint() {
	g := e.globalState()
	n := e.cfg.LeaderboardSize
	e.submit("checkpoint", func(ctx context.Context, s store.Store) error {
		if err := s.SaveGlobal(ctx, g); err != nil {
			return err
		}
		if n <= 0 {
			return nil
		}
		top, err := s.TopProfiles(ctx, n)
		if err != nil {
			return err
		}
		e.post(func() { e.setLeaderboard(top) })
		return nil
	})
}

func (e *Engine) setLeaderboard(top []store.Profile) {
	entries := make([]protocol.LeaderboardEntry, 0, len(top))
	for i, p := range top {
		entries = append(entries, protocol.LeaderboardEntry{
			Rank:     i + 1,
			Identity: p.Identity,
			Name:     p.Name,
			Clicks:   p.Clicks,
			Coins:    p.Coins,
			Shards:   p.Shards,
		})
	}
	e.leaderboard = entries
	cp := append([]protocol.LeaderboardEntry(nil), entries...)
	e.board.Store(&cp)
	e.broadcastAll(protocol.EvLeaderboard, entries)
}

// Leaderboard returns the last published leaderboard. Safe from any goroutine.
func (e *Engine) Leaderboard() []protocol.LeaderboardEntry {
	if p := e.board.Load(); p != nil {
		return append([]protocol.LeaderboardEntry(nil), (*p)...)
	}
	return nil
}
