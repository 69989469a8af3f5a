package world

type MineResult struct {
	Known     bool
	OK        bool
	Remaining int
	Shards    int64
}

// Mine takes one shard from the weekly pool for connID.
func (w *World) Mine(connID string) MineResult {
	p, ok := w.players[connID]
	if !ok {
		return MineResult{}
	}
	if w.shardPool <= 0 {
		return MineResult{Known: true, Remaining: 0, Shards: p.Shards}
	}
	w.shardPool--
	p.Shards++
	return MineResult{Known: true, OK: true, Remaining: w.shardPool, Shards: p.Shards}
}

// RefillShards tops the pool up to its cap once per week key (ISO year-week).
func (w *World) RefillShards(week string) bool {
	if week == w.shardWeek {
		return false
	}
	w.shardPool = w.cfg.ShardPoolCap
	w.shardWeek = week
	return true
}
