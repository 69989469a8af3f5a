// Package engine runs the authoritative game loop.
//
// One goroutine (Run) owns the world model, the connected clients and every
// timer. Transports talk to it through channels; persistence is handed off to a
// store.Submitter after each mutation has been applied and broadcast.
package engine

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	persistlog "avocado.town/internal/persistence/log"
	"avocado.town/internal/persistence/store"
	"avocado.town/internal/protocol"
	"avocado.town/internal/sim/tuning"
	"avocado.town/internal/sim/world"
)

// Journal receives events worth keeping after the process exits.
type Journal interface {
	Record(e persistlog.Entry) error
}

type Config struct {
	Tuning  tuning.Tuning
	Logger  *log.Logger
	Persist store.Submitter
	Journal Journal

	// Optional hooks; production leaves them nil.
	Now   func() time.Time
	Rand  *rand.Rand
	NewID func() string
	After func(d time.Duration, f func())
}

// ConnectRequest registers a transport connection. Out receives encoded frames;
// Close is called when the connection must be dropped (slow consumer).
type ConnectRequest struct {
	ConnID string
	Out    chan []byte
	Close  func()
}

// Inbound is one decoded client frame.
type Inbound struct {
	ConnID string
	Env    protocol.Envelope
}

type Engine struct {
	cfg     tuning.Tuning
	log     *log.Logger
	persist store.Submitter
	journal Journal
	valid   *protocol.Validator

	now   func() time.Time
	rng   *rand.Rand
	newID func() string
	after func(d time.Duration, f func())

	world *world.World

	connect chan ConnectRequest
	inbox   chan Inbound
	leave   chan string
	results chan func()
	admin   chan adminReq
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once

	clients  map[string]*client
	pending  map[string]uint64
	joinSeq  uint64
	limiters map[string]*rate.Limiter

	leaderboard []protocol.LeaderboardEntry
	gameOvers   uint64

	metrics  atomic.Pointer[Metrics]
	board    atomic.Pointer[[]protocol.LeaderboardEntry]
	inbound  atomic.Uint64
	rejected atomic.Uint64
	slow     atomic.Uint64
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	valid, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg.Tuning,
		log:     cfg.Logger,
		persist: cfg.Persist,
		journal: cfg.Journal,
		valid:   valid,
		now:     cfg.Now,
		rng:     cfg.Rand,
		newID:   cfg.NewID,
		after:   cfg.After,

		connect: make(chan ConnectRequest, 64),
		inbox:   make(chan Inbound, 1024),
		leave:   make(chan string, 64),
		results: make(chan func(), 1024),
		admin:   make(chan adminReq, 8),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),

		clients:  map[string]*client{},
		pending:  map[string]uint64{},
		limiters: map[string]*rate.Limiter{},
	}
	if e.log == nil {
		e.log = log.New(log.Writer(), "[engine] ", log.LstdFlags|log.Lmicroseconds)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.after == nil {
		e.after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if e.persist == nil {
		e.persist = &store.Inline{Store: store.NewMemory(), Logger: e.log}
	}

	wcfg := world.ConfigFromTuning(cfg.Tuning)
	wcfg.Rand = e.rng
	wcfg.NewID = e.newID
	e.world = world.New(wcfg)
	e.publishMetrics()
	return e, nil
}

func (e *Engine) Connect() chan<- ConnectRequest { return e.connect }
func (e *Engine) Inbox() chan<- Inbound          { return e.inbox }
func (e *Engine) Leave() chan<- string           { return e.leave }

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Restore seeds the world from the persisted aggregate. Call before Run.
func (e *Engine) Restore(g store.GlobalState) {
	e.world.Restore(world.Global{
		Total:        g.Total,
		ShardPool:    g.ShardPool,
		Stage:        g.StageColor,
		LastResetDay: g.LastResetDate,
		ShardWeek:    g.ShardWeek,
	})
	// A stored stage that does not match the restored total is recomputed.
	e.world.AdvanceStageFor(e.world.Total())
	e.publishMetrics()
}

// globalState mirrors the world aggregate in store form.
func (e *Engine) globalState() store.GlobalState {
	g := e.world.Global()
	return store.GlobalState{
		Total:         g.Total,
		ShardPool:     g.ShardPool,
		StageColor:    g.Stage,
		LastResetDate: g.LastResetDay,
		ShardWeek:     g.ShardWeek,
		SchemaVersion: store.SchemaVersion,
	}
}

// DefaultGlobal is the aggregate used on an empty store.
func DefaultGlobal(t tuning.Tuning) store.GlobalState {
	g := store.GlobalState{ShardPool: t.ShardPoolCap, SchemaVersion: store.SchemaVersion}
	if len(t.Stages) > 0 {
		g.StageColor = t.Stages[0].Color
	}
	return g
}

// post queues fn to run on the loop goroutine. It gives up once the loop has
// stopped so that timers and writer jobs never block forever.
func (e *Engine) post(fn func()) {
	select {
	case e.results <- fn:
	case <-e.done:
	}
}

func (e *Engine) submit(name string, run func(ctx context.Context, s store.Store) error) bool {
	return e.persist.Submit(store.Job{Name: name, Run: run})
}

func (e *Engine) today() string { return store.DayKey(e.now()) }

// record journals an event. The write runs on the persistence submitter so
// the loop never touches the disk.
func (e *Engine) record(event, connID, identity string, data any) {
	if e.journal == nil {
		return
	}
	entry := persistlog.Entry{Time: e.now().UTC(), Event: event, ConnID: connID, Identity: identity}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			entry.Data = b
		}
	}
	j := e.journal
	e.submit("journal", func(context.Context, store.Store) error {
		return j.Record(entry)
	})
}
