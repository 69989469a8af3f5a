package engine

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"avocado.town/internal/persistence/store"
	"avocado.town/internal/protocol"
	"avocado.town/internal/sim/world"
)

type handlerFunc func(e *Engine, p *world.Player, data json.RawMessage)

// handlers covers every inbound event except join, which runs before a session exists.
var handlers = map[string]handlerFunc{
	protocol.EvMove:         (*Engine).onMove,
	protocol.EvClick:        (*Engine).onClick,
	protocol.EvRename:       (*Engine).onRename,
	protocol.EvChat:         (*Engine).onChat,
	protocol.EvGrow:         (*Engine).onGrow,
	protocol.EvMine:         (*Engine).onMine,
	protocol.EvCollectItem:  (*Engine).onCollectItem,
	protocol.EvSpawnRequest: (*Engine).onSpawnRequest,
}

func (e *Engine) handleInbound(in Inbound) {
	e.inbound.Add(1)
	if _, ok := e.clients[in.ConnID]; !ok {
		return
	}
	ev := in.Env.Event

	if ev != protocol.EvJoin {
		p, ok := e.world.Player(in.ConnID)
		if !ok {
			return
		}
		h := handlers[ev]
		if h == nil {
			e.sendError(in.ConnID, protocol.ErrBadRequest, "unknown event "+ev)
			return
		}
		if err := e.valid.Validate(in.Env); err != nil {
			e.sendError(in.ConnID, protocol.ErrBadRequest, err.Error())
			return
		}
		h(e, p, in.Env.Data)
		return
	}

	if err := e.valid.Validate(in.Env); err != nil {
		e.sendError(in.ConnID, protocol.ErrBadRequest, err.Error())
		return
	}
	var identity string
	if err := json.Unmarshal(in.Env.Data, &identity); err != nil {
		e.sendError(in.ConnID, protocol.ErrBadRequest, "identity must be a string")
		return
	}
	e.handleJoin(in.ConnID, identity)
}

func (e *Engine) onMove(p *world.Player, data json.RawMessage) {
	var m protocol.MoveMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	x, y, ok := e.world.MovePlayer(p.ConnID, m.X, m.Y)
	if !ok {
		return
	}
	e.broadcast(p.ConnID, protocol.EvMoved, protocol.MovedMsg{ConnID: p.ConnID, X: x, Y: y})
}

func (e *Engine) onClick(p *world.Player, _ json.RawMessage) {
	if lim := e.limiters[p.ConnID]; lim != nil && !lim.AllowN(e.now(), 1) {
		e.sendError(p.ConnID, protocol.ErrRateLimit, "clicking too fast")
		return
	}
	day := e.today()
	res := e.world.RecordClick(p.ConnID, day)
	if !res.Known {
		return
	}
	if !res.Accepted {
		e.sendTo(p.ConnID, protocol.EvQuotaExceeded, nil)
		return
	}

	e.broadcastAll(protocol.EvScoreUpdate, protocol.ScoreUpdateMsg{
		ConnID:        p.ConnID,
		PersonalCount: res.Personal,
		GlobalTotal:   res.GlobalTotal,
		StageColor:    res.StageColor,
	})
	if res.StageColor != "" {
		e.broadcastAll(protocol.EvStageChanged, res.StageColor)
		e.log.Printf("stage changed color=%s total=%d", res.StageColor, res.GlobalTotal)
	}
	for _, s := range e.world.SessionsFor(p.Identity) {
		e.sendTo(s.ConnID, protocol.EvDailyProgress, res.Today)
	}

	identity := p.Identity
	e.submit("click", func(ctx context.Context, s store.Store) error {
		return s.IncrementProfile(ctx, identity, store.Delta{Clicks: 1, TodayClicks: 1}, day)
	})
}

func (e *Engine) onRename(p *world.Player, data json.RawMessage) {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return
	}
	e.handleRename(p.ConnID, name)
}

func (e *Engine) onChat(p *world.Player, data json.RawMessage) {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if limit := e.cfg.ChatMaxLen; limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}
	msg := protocol.ChatMessage{
		ID:         e.newID(),
		Text:       text,
		Sender:     p.Identity,
		SenderName: p.Name,
		Color:      p.Color,
		Timestamp:  e.now().UnixMilli(),
	}
	e.broadcastAll(protocol.EvMessage, msg)
	e.record(protocol.EvMessage, p.ConnID, p.Identity, msg)
}

func (e *Engine) onGrow(p *world.Player, _ json.RawMessage) {
	seq, ok := e.world.Grow(p.ConnID, e.cfg.GrowScale)
	if !ok {
		return
	}
	connID := p.ConnID
	e.broadcastAll(protocol.EvScaleChanged, protocol.ScaleChangedMsg{ConnID: connID, Scale: e.cfg.GrowScale})
	e.after(e.cfg.GrowRevert(), func() {
		e.post(func() { e.revertGrow(connID, seq) })
	})
}

func (e *Engine) revertGrow(connID string, seq uint64) {
	if !e.world.RevertGrow(connID, seq) {
		return
	}
	e.broadcastAll(protocol.EvScaleChanged, protocol.ScaleChangedMsg{ConnID: connID, Scale: e.world.BaseScale()})
}

func (e *Engine) onMine(p *world.Player, _ json.RawMessage) {
	res := e.world.Mine(p.ConnID)
	if !res.Known {
		return
	}
	if !res.OK {
		e.sendTo(p.ConnID, protocol.EvPoolDepleted, nil)
		return
	}
	e.broadcastAll(protocol.EvShardCollect, protocol.ShardCollectedMsg{ConnID: p.ConnID, NewShardCount: res.Shards})
	e.broadcastAll(protocol.EvPoolUpdate, res.Remaining)

	identity, day := p.Identity, e.today()
	e.submit("mine", func(ctx context.Context, s store.Store) error {
		return s.IncrementProfile(ctx, identity, store.Delta{Shards: 1}, day)
	})
}

func (e *Engine) onCollectItem(p *world.Player, data json.RawMessage) {
	var itemID string
	if err := json.Unmarshal(data, &itemID); err != nil {
		return
	}
	res := e.world.CollectItem(itemID, p.ConnID)
	if !res.Collected {
		return
	}
	e.broadcastAll(protocol.EvItemRemoved, protocol.ItemRemovedMsg{ItemID: itemID, CollectorID: p.ConnID, NewCount: res.NewCount})

	d := store.Delta{Collected: 1}
	if res.Kind == world.KindCoin {
		d = store.Delta{Coins: 1}
	}
	identity, day := p.Identity, e.today()
	e.submit("collect", func(ctx context.Context, s store.Store) error {
		return s.IncrementProfile(ctx, identity, d, day)
	})
}

func (e *Engine) onSpawnRequest(_ *world.Player, data json.RawMessage) {
	var req protocol.SpawnRequestMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
	}
	if req.Kind != "" && req.Kind != string(world.KindCoin) {
		return
	}
	e.spawn(world.KindCoin)
}

// spawn creates a collectible and announces it; it is a no-op at the kind's cap.
func (e *Engine) spawn(kind world.Kind) bool {
	it, ok := e.world.SpawnCollectible(kind, e.now())
	if !ok {
		return false
	}
	e.broadcastAll(protocol.EvItemSpawned, itemView(it))
	return true
}
