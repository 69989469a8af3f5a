package world

import (
	"sort"
	"time"
)

type Kind string

const (
	KindCoin  Kind = "coin"
	KindTrash Kind = "trash"
)

type Collectible struct {
	ID        string
	Kind      Kind
	X, Y      float64
	SpawnedAt time.Time
}

func (w *World) capFor(kind Kind) int {
	switch kind {
	case KindCoin:
		return w.cfg.MaxCoins
	case KindTrash:
		return w.cfg.MaxDecayItems
	default:
		return 0
	}
}

// ActiveItems counts live collectibles of kind.
func (w *World) ActiveItems(kind Kind) int {
	n := 0
	for _, it := range w.items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}

// SpawnCollectible creates an item unless the per-kind cap is already met.
func (w *World) SpawnCollectible(kind Kind, now time.Time) (Collectible, bool) {
	if w.ActiveItems(kind) >= w.capFor(kind) {
		return Collectible{}, false
	}
	it := &Collectible{
		ID:        w.newID(),
		Kind:      kind,
		X:         10 + w.rng.Float64()*80,
		Y:         10 + w.rng.Float64()*80,
		SpawnedAt: now,
	}
	w.items[it.ID] = it
	return *it, true
}

type CollectResult struct {
	Collected bool
	Kind      Kind
	NewCount  int64
}

// CollectItem credits the first caller that references a still-present item.
func (w *World) CollectItem(itemID, connID string) CollectResult {
	p, ok := w.players[connID]
	if !ok {
		return CollectResult{}
	}
	it, ok := w.items[itemID]
	if !ok {
		return CollectResult{}
	}
	delete(w.items, itemID)

	res := CollectResult{Collected: true, Kind: it.Kind}
	switch it.Kind {
	case KindCoin:
		p.Coins++
		res.NewCount = p.Coins
	default:
		p.Collected++
		res.NewCount = p.Collected
	}
	return res
}

// ExpireCollectibles removes coins that have been on the field longer than ttl.
// Decay items never expire; they have to be collected.
func (w *World) ExpireCollectibles(now time.Time, ttl time.Duration) []Collectible {
	if ttl <= 0 {
		return nil
	}
	var out []Collectible
	for id, it := range w.items {
		if it.Kind != KindCoin || now.Sub(it.SpawnedAt) < ttl {
			continue
		}
		out = append(out, *it)
		delete(w.items, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Items returns the live collectibles ordered by spawn time, then id.
func (w *World) Items() []Collectible {
	out := make([]Collectible, 0, len(w.items))
	for _, it := range w.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SpawnedAt.Equal(out[j].SpawnedAt) {
			return out[i].SpawnedAt.Before(out[j].SpawnedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
