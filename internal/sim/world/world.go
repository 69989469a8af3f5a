package world

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"avocado.town/internal/sim/tuning"
)

var (
	ErrDuplicateConn = errors.New("world: connection already has a session")
	ErrEmptyIdentity = errors.New("world: empty identity")
)

type Config struct {
	DailyClickCap      int
	StageCheckEvery    int64
	Stages             []tuning.Stage
	ShardPoolCap       int
	ResetBuffer        int64
	DecayDamagePerItem int64
	MaxCoins           int
	MaxDecayItems      int
	BaseScale          float64

	// Optional; defaults to a time-seeded source and uuid.NewString.
	Rand  *rand.Rand
	NewID func() string
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		DailyClickCap:      t.DailyClickCap,
		StageCheckEvery:    t.StageCheckEvery,
		Stages:             append([]tuning.Stage(nil), t.Stages...),
		ShardPoolCap:       t.ShardPoolCap,
		ResetBuffer:        t.ResetBuffer,
		DecayDamagePerItem: t.DecayDamagePerItem,
		MaxCoins:           t.MaxCoins,
		MaxDecayItems:      t.MaxDecayItems,
		BaseScale:          t.BaseScale,
	}
}

// Global is the durable world aggregate mirrored into the store on checkpoint.
type Global struct {
	Total        int64
	ShardPool    int
	Stage        string
	LastResetDay string
	ShardWeek    string
}

// World is the authoritative in-memory game state.
// It performs no I/O and must be accessed only from the engine loop goroutine.
type World struct {
	cfg   Config
	rng   *rand.Rand
	newID func() string

	players map[string]*Player
	quotas  map[string]*quota
	items   map[string]*Collectible

	total        int64
	shardPool    int
	stage        string
	lastResetDay string
	shardWeek    string
}

func New(cfg Config) *World {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	if cfg.BaseScale <= 0 {
		cfg.BaseScale = 1
	}
	w := &World{
		cfg:       cfg,
		rng:       rng,
		newID:     newID,
		players:   map[string]*Player{},
		quotas:    map[string]*quota{},
		items:     map[string]*Collectible{},
		shardPool: cfg.ShardPoolCap,
	}
	if len(cfg.Stages) > 0 {
		w.stage = cfg.Stages[0].Color
	}
	return w
}

// Restore loads the persisted aggregate. Negative totals are clamped and the
// shard pool is capped.
func (w *World) Restore(g Global) {
	w.total = g.Total
	if w.total < 0 {
		w.total = 0
	}
	w.shardPool = g.ShardPool
	if w.shardPool < 0 {
		w.shardPool = 0
	}
	if w.shardPool > w.cfg.ShardPoolCap {
		w.shardPool = w.cfg.ShardPoolCap
	}
	if g.Stage != "" {
		w.stage = g.Stage
	}
	w.lastResetDay = g.LastResetDay
	w.shardWeek = g.ShardWeek
}

func (w *World) Global() Global {
	return Global{
		Total:        w.total,
		ShardPool:    w.shardPool,
		Stage:        w.stage,
		LastResetDay: w.lastResetDay,
		ShardWeek:    w.shardWeek,
	}
}

func (w *World) Total() int64       { return w.total }
func (w *World) ShardPool() int     { return w.shardPool }
func (w *World) Stage() string      { return w.stage }
func (w *World) NumPlayers() int    { return len(w.players) }
func (w *World) DailyClickCap() int { return w.cfg.DailyClickCap }

// View is a point-in-time copy of the world for snapshots.
type View struct {
	Players   []Player
	Items     []Collectible
	Total     int64
	ShardPool int
	Stage     string
}

func (w *World) View() View {
	v := View{
		Players:   make([]Player, 0, len(w.players)),
		Items:     w.Items(),
		Total:     w.total,
		ShardPool: w.shardPool,
		Stage:     w.stage,
	}
	for _, p := range w.players {
		v.Players = append(v.Players, *p)
	}
	sort.Slice(v.Players, func(i, j int) bool { return v.Players[i].ConnID < v.Players[j].ConnID })
	return v
}
