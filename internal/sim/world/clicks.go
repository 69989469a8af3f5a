package world

// quota is the per-identity daily click counter shared by every live session of
// that identity.
type quota struct {
	day   string
	count int
	refs  int
}

// normalize resets a counter carried over from an earlier day.
func (q *quota) normalize(day string) {
	if q.day != day {
		q.day = day
		q.count = 0
	}
}

type ClickResult struct {
	Known    bool
	Accepted bool

	GlobalTotal int64
	Personal    int64
	Today       int

	// Set when this click moved the world into a new stage.
	StageColor string
}

// RecordClick applies one click for connID on the given UTC day. The global total,
// lifetime count and daily count change together or not at all.
func (w *World) RecordClick(connID, day string) ClickResult {
	p, ok := w.players[connID]
	if !ok {
		return ClickResult{}
	}
	q := p.quota
	q.normalize(day)
	res := ClickResult{Known: true, GlobalTotal: w.total, Personal: p.Clicks, Today: q.count}
	if q.count >= w.cfg.DailyClickCap {
		return res
	}

	w.total++
	p.Clicks++
	q.count++

	res.Accepted = true
	res.GlobalTotal = w.total
	res.Personal = p.Clicks
	res.Today = q.count

	if every := w.cfg.StageCheckEvery; every <= 1 || w.total%every == 0 {
		if color, changed := w.AdvanceStageFor(w.total); changed {
			res.StageColor = color
		}
	}
	return res
}

// ResetDailyQuotas zeroes every tracked daily counter once per day.
// It reports false when day was already reset.
func (w *World) ResetDailyQuotas(day string) bool {
	if day == w.lastResetDay {
		return false
	}
	for _, q := range w.quotas {
		q.day = day
		q.count = 0
	}
	w.lastResetDay = day
	return true
}

func (w *World) LastResetDay() string { return w.lastResetDay }
