package world

import (
	"fmt"
	"math"
	"sort"
)

type Player struct {
	ConnID   string
	Identity string
	Name     string

	X, Y  float64
	Color string
	Scale float64

	Clicks    int64
	Coins     int64
	Shards    int64
	Collected int64

	growSeq uint64
	quota   *quota
}

// TodayClicks is the identity's shared click count for the current day.
func (p *Player) TodayClicks() int {
	if p == nil || p.quota == nil {
		return 0
	}
	return p.quota.count
}

// QuotaDay is the day TodayClicks counts for.
func (p *Player) QuotaDay() string {
	if p == nil || p.quota == nil {
		return ""
	}
	return p.quota.day
}

// SeedStats carries the persisted profile fields a new session starts from.
type SeedStats struct {
	Name        string
	Clicks      int64
	Coins       int64
	Shards      int64
	Collected   int64
	TodayClicks int
	Day         string
}

// AddPlayer creates a session at a random spawn point within [10,90]% of both axes.
// An existing session for connID is never replaced.
func (w *World) AddPlayer(connID, identity string, seed SeedStats, day string) (*Player, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	if _, ok := w.players[connID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConn, connID)
	}

	q := w.quotas[identity]
	if q == nil {
		q = &quota{day: seed.Day, count: seed.TodayClicks}
		w.quotas[identity] = q
	}
	q.normalize(day)
	q.refs++

	p := &Player{
		ConnID:    connID,
		Identity:  identity,
		Name:      seed.Name,
		X:         10 + w.rng.Float64()*80,
		Y:         10 + w.rng.Float64()*80,
		Color:     fmt.Sprintf("#%06x", w.rng.Intn(0x1000000)),
		Scale:     w.cfg.BaseScale,
		Clicks:    seed.Clicks,
		Coins:     seed.Coins,
		Shards:    seed.Shards,
		Collected: seed.Collected,
		quota:     q,
	}
	w.players[connID] = p
	return p, nil
}

// RemovePlayer detaches the session and returns it for persistence.
func (w *World) RemovePlayer(connID string) (*Player, bool) {
	p, ok := w.players[connID]
	if !ok {
		return nil, false
	}
	delete(w.players, connID)
	if q := w.quotas[p.Identity]; q != nil {
		q.refs--
		if q.refs <= 0 {
			delete(w.quotas, p.Identity)
		}
	}
	return p, true
}

func (w *World) Player(connID string) (*Player, bool) {
	p, ok := w.players[connID]
	return p, ok
}

// SessionsFor returns every live session of identity, ordered by connection id.
func (w *World) SessionsFor(identity string) []*Player {
	var out []*Player
	for _, p := range w.players {
		if p.Identity == identity {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

// MovePlayer clamps coordinates to [0,100]. Non-finite values are rejected.
func (w *World) MovePlayer(connID string, x, y float64) (float64, float64, bool) {
	p, ok := w.players[connID]
	if !ok {
		return 0, 0, false
	}
	if !finite(x) || !finite(y) {
		return 0, 0, false
	}
	p.X = clampPct(x)
	p.Y = clampPct(y)
	return p.X, p.Y, true
}

func (w *World) SetName(connID, name string) (*Player, bool) {
	p, ok := w.players[connID]
	if !ok {
		return nil, false
	}
	p.Name = name
	return p, true
}

// Grow scales the avatar up. The returned sequence identifies this grow for RevertGrow.
func (w *World) Grow(connID string, scale float64) (uint64, bool) {
	p, ok := w.players[connID]
	if !ok {
		return 0, false
	}
	p.growSeq++
	p.Scale = scale
	return p.growSeq, true
}

// RevertGrow restores the base scale unless the session is gone or grew again since seq.
func (w *World) RevertGrow(connID string, seq uint64) bool {
	p, ok := w.players[connID]
	if !ok || p.growSeq != seq {
		return false
	}
	p.Scale = w.cfg.BaseScale
	return true
}

func (w *World) BaseScale() float64 { return w.cfg.BaseScale }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
