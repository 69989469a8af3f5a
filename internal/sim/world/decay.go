package world

type DecayResult struct {
	Damage int64
	// Clamped is the total after damage, floored at zero.
	Clamped  int64
	NewTotal int64
	GameOver bool
}

// ApplyDecay deals one point of damage per active decay item (scaled by the
// configured damage). When the total would reach zero or below, the world is
// reset: the total becomes the reset buffer, decay items are cleared and every
// live session loses its score fields.
func (w *World) ApplyDecay() DecayResult {
	n := int64(w.ActiveItems(KindTrash))
	if n == 0 {
		return DecayResult{Clamped: w.total, NewTotal: w.total}
	}
	damage := n * w.cfg.DecayDamagePerItem
	if w.total-damage > 0 {
		w.total -= damage
		return DecayResult{Damage: damage, Clamped: w.total, NewTotal: w.total}
	}
	w.resetGame()
	return DecayResult{Damage: damage, Clamped: 0, NewTotal: w.total, GameOver: true}
}

// ForceGameOver performs the same reset as a decay crossing, without damage.
func (w *World) ForceGameOver() int64 {
	w.resetGame()
	return w.total
}

func (w *World) resetGame() {
	w.total = w.cfg.ResetBuffer
	for id, it := range w.items {
		if it.Kind == KindTrash {
			delete(w.items, id)
		}
	}
	for _, p := range w.players {
		p.Clicks = 0
		p.Coins = 0
		p.Shards = 0
		p.Collected = 0
	}
}

// AdvanceStageFor picks the color of the highest stage whose threshold is <= total.
// It returns changed=false when that color is already current.
func (w *World) AdvanceStageFor(total int64) (string, bool) {
	color := ""
	for _, s := range w.cfg.Stages {
		if s.Threshold > total {
			break
		}
		color = s.Color
	}
	if color == "" || color == w.stage {
		return "", false
	}
	w.stage = color
	return color, true
}
