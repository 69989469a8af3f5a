package engine

import (
	"context"
	"time"

	"avocado.town/internal/persistence/store"
)

// Run processes connections, client events and timers until ctx is done or
// Stop is called. On exit it writes a final checkpoint and flushes every live
// session's profile.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	worldTick := time.NewTicker(e.cfg.DecayTick())
	defer worldTick.Stop()
	coinTick := time.NewTicker(e.cfg.CoinSpawnEvery())
	defer coinTick.Stop()
	checkpointTick := time.NewTicker(e.cfg.CheckpointEvery())
	defer checkpointTick.Stop()

	// Publish a leaderboard without waiting a full checkpoint interval.
	e.checkpoint()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case <-e.stop:
			e.shutdown()
			return nil
		case req := <-e.connect:
			e.handleConnect(req)
		case in := <-e.inbox:
			e.handleInbound(in)
		case id := <-e.leave:
			e.handleLeave(id)
		case fn := <-e.results:
			fn()
		case req := <-e.admin:
			e.handleAdmin(req)
		case <-worldTick.C:
			e.worldTick(e.now())
		case <-coinTick.C:
			e.coinTick()
		case <-checkpointTick.C:
			e.checkpoint()
		}
		e.publishMetrics()
	}
}

func (e *Engine) Stop() { e.stopOnce.Do(func() { close(e.stop) }) }

func (e *Engine) shutdown() {
	g := e.globalState()
	e.submit("final-checkpoint", func(ctx context.Context, s store.Store) error {
		return s.SaveGlobal(ctx, g)
	})
	for _, c := range e.clients {
		e.handleLeave(c.id)
	}
	e.publishMetrics()
	e.log.Printf("engine stopped total=%d", e.world.Total())
}
