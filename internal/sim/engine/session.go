package engine

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"avocado.town/internal/persistence/store"
	"avocado.town/internal/protocol"
	"avocado.town/internal/sim/world"
)

var errJoinQueueFull = errors.New("persist queue full")

func (e *Engine) handleJoin(connID, identity string) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		e.sendError(connID, protocol.ErrBadRequest, "identity required")
		return
	}
	if _, ok := e.world.Player(connID); ok {
		e.log.Printf("duplicate join conn=%s identity=%s", connID, identity)
		e.sendError(connID, protocol.ErrConflict, "already joined")
		return
	}
	if _, ok := e.pending[connID]; ok {
		e.sendError(connID, protocol.ErrConflict, "join in progress")
		return
	}

	e.joinSeq++
	seq := e.joinSeq
	e.pending[connID] = seq
	day := e.today()
	epoch := e.gameOvers

	ok := e.submit("load-profile", func(ctx context.Context, s store.Store) error {
		p, err := s.GetOrCreateProfile(ctx, identity, day)
		e.post(func() { e.joinLoaded(connID, seq, epoch, identity, day, p, err) })
		return err
	})
	if !ok {
		delete(e.pending, connID)
		e.log.Printf("join conn=%s identity=%s err=%v", connID, identity, errJoinQueueFull)
		e.sendError(connID, protocol.ErrBusy, "server busy, retry join")
	}
}

// joinLoaded completes a join once its profile load has returned. The join is
// dropped when the connection left or re-joined in the meantime. A game over
// that ran after the load (epoch changed) voids the loaded score fields.
func (e *Engine) joinLoaded(connID string, seq, epoch uint64, identity, day string, prof store.Profile, loadErr error) {
	if e.pending[connID] != seq {
		return
	}
	delete(e.pending, connID)
	if _, ok := e.clients[connID]; !ok {
		return
	}

	seed := world.SeedStats{Day: day}
	if loadErr != nil {
		e.log.Printf("load profile identity=%s err=%v; starting from zero", identity, loadErr)
	} else {
		seed = world.SeedStats{
			Name:        prof.Name,
			Clicks:      prof.Clicks,
			Coins:       prof.Coins,
			Shards:      prof.Shards,
			Collected:   prof.Collected,
			TodayClicks: prof.TodayClicks,
			Day:         prof.LastResetDate,
		}
		if epoch != e.gameOvers {
			seed.Clicks, seed.Coins, seed.Shards, seed.Collected = 0, 0, 0, 0
		}
	}

	p, err := e.world.AddPlayer(connID, identity, seed, e.today())
	if err != nil {
		e.log.Printf("join rejected conn=%s identity=%s err=%v", connID, identity, err)
		e.sendError(connID, protocol.ErrConflict, "already joined")
		return
	}
	if r := e.cfg.ClickRate; r.PerSecond > 0 {
		e.limiters[connID] = rate.NewLimiter(rate.Limit(r.PerSecond), r.Burst)
	}

	e.sendTo(connID, protocol.EvSnapshot, e.snapshotFor(connID, p))
	e.sendTo(connID, protocol.EvDailyProgress, p.TodayClicks())
	e.broadcast(connID, protocol.EvJoined, playerView(p))
	e.log.Printf("join conn=%s identity=%s sessions=%d", connID, identity, e.world.NumPlayers())
}

func (e *Engine) snapshotFor(connID string, self *world.Player) protocol.SnapshotMsg {
	v := e.world.View()
	msg := protocol.SnapshotMsg{
		SelfID:      connID,
		Sessions:    make(map[string]protocol.PlayerView, len(v.Players)),
		StageColor:  v.Stage,
		GlobalTotal: v.Total,
		ShardPool:   v.ShardPool,
		ActiveItems: make([]protocol.ItemView, 0, len(v.Items)),
		TodayClicks: self.TodayClicks(),
		DailyCap:    e.world.DailyClickCap(),
		Leaderboard: e.leaderboard,
	}
	for i := range v.Players {
		msg.Sessions[v.Players[i].ConnID] = playerView(&v.Players[i])
	}
	for _, it := range v.Items {
		msg.ActiveItems = append(msg.ActiveItems, itemView(it))
	}
	return msg
}

func (e *Engine) handleRename(connID, name string) {
	name = strings.TrimSpace(name)
	if limit := e.cfg.NameMaxLen; limit > 0 && utf8.RuneCountInString(name) > limit {
		name = strings.TrimSpace(string([]rune(name)[:limit]))
	}
	if name == "" {
		e.sendError(connID, protocol.ErrBadRequest, "name required")
		return
	}
	p, ok := e.world.SetName(connID, name)
	if !ok {
		return
	}
	identity := p.Identity
	e.broadcastAll(protocol.EvRenamed, protocol.RenamedMsg{ConnID: connID, Name: name})
	e.submit("set-name", func(ctx context.Context, s store.Store) error {
		return s.SetDisplayName(ctx, identity, name)
	})
}

func (e *Engine) handleLeave(connID string) {
	delete(e.pending, connID)
	delete(e.limiters, connID)
	delete(e.clients, connID)

	p, ok := e.world.RemovePlayer(connID)
	if !ok {
		return
	}
	final := store.Profile{
		Identity:      p.Identity,
		Name:          p.Name,
		Clicks:        p.Clicks,
		Coins:         p.Coins,
		Shards:        p.Shards,
		Collected:     p.Collected,
		TodayClicks:   p.TodayClicks(),
		LastResetDate: p.QuotaDay(),
	}
	e.broadcastAll(protocol.EvLeft, connID)
	e.submit("flush-profile", func(ctx context.Context, s store.Store) error {
		return s.FlushProfile(ctx, final)
	})
	e.log.Printf("leave conn=%s identity=%s sessions=%d", connID, p.Identity, e.world.NumPlayers())
}

func playerView(p *world.Player) protocol.PlayerView {
	return protocol.PlayerView{
		ID:          p.ConnID,
		Identity:    p.Identity,
		Name:        p.Name,
		X:           p.X,
		Y:           p.Y,
		Color:       p.Color,
		Scale:       p.Scale,
		Clicks:      p.Clicks,
		Coins:       p.Coins,
		Shards:      p.Shards,
		Collected:   p.Collected,
		TodayClicks: p.TodayClicks(),
	}
}

func itemView(it world.Collectible) protocol.ItemView {
	return protocol.ItemView{ID: it.ID, Kind: string(it.Kind), X: it.X, Y: it.Y}
}
