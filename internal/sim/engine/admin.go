package engine

import (
	"context"
	"errors"

	"avocado.town/internal/sim/world"
)

type adminKind int

const (
	adminStatus adminKind = iota + 1
	adminReset
)

type adminReq struct {
	kind adminKind
	resp chan Status
}

// Status is a point-in-time view of the loop for operators.
type Status struct {
	Clients      int    `json:"clients"`
	Sessions     int    `json:"sessions"`
	GlobalTotal  int64  `json:"global_total"`
	ShardPool    int    `json:"shard_pool"`
	StageColor   string `json:"stage_color"`
	ActiveCoins  int    `json:"active_coins"`
	ActiveTrash  int    `json:"active_trash"`
	LastResetDay string `json:"last_reset_day"`
	ShardWeek    string `json:"shard_week"`
	GameOvers    uint64 `json:"game_overs"`
}

// RequestStatus asks the loop goroutine for its current status.
// It is safe to call from other goroutines (e.g. admin HTTP handlers).
func (e *Engine) RequestStatus(ctx context.Context) (Status, error) {
	return e.request(ctx, adminStatus)
}

// RequestReset forces the game-over reset and returns the status after it.
func (e *Engine) RequestReset(ctx context.Context) (Status, error) {
	return e.request(ctx, adminReset)
}

func (e *Engine) request(ctx context.Context, kind adminKind) (Status, error) {
	if e == nil {
		return Status{}, errors.New("engine not available")
	}
	resp := make(chan Status, 1)
	select {
	case e.admin <- adminReq{kind: kind, resp: resp}:
	case <-e.done:
		return Status{}, errors.New("engine stopped")
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-e.done:
		return Status{}, errors.New("engine stopped")
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (e *Engine) handleAdmin(req adminReq) {
	if req.kind == adminReset {
		e.world.ForceGameOver()
		e.finishGameOver("admin")
	}
	select {
	case req.resp <- e.status():
	default:
		// Caller gave up; never block the loop.
	}
}

func (e *Engine) status() Status {
	g := e.world.Global()
	return Status{
		Clients:      len(e.clients),
		Sessions:     e.world.NumPlayers(),
		GlobalTotal:  g.Total,
		ShardPool:    g.ShardPool,
		StageColor:   g.Stage,
		ActiveCoins:  e.world.ActiveItems(world.KindCoin),
		ActiveTrash:  e.world.ActiveItems(world.KindTrash),
		LastResetDay: g.LastResetDay,
		ShardWeek:    g.ShardWeek,
		GameOvers:    e.gameOvers,
	}
}
