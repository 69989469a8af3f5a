// Package store persists player profiles and the global world aggregate.
//
// All writes issued by the game loop go through a Writer so the loop never
// blocks on disk I/O. Implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Profile is the durable per-identity record.
type Profile struct {
	Identity      string `json:"identity"`
	Name          string `json:"name"`
	Clicks        int64  `json:"clicks"`
	Coins         int64  `json:"coins"`
	Shards        int64  `json:"shards"`
	Collected     int64  `json:"collected"`
	TodayClicks   int    `json:"todayClicks"`
	LastResetDate string `json:"lastResetDate"`
}

// GlobalState is the singleton world aggregate.
type GlobalState struct {
	Total         int64  `json:"total"`
	ShardPool     int    `json:"shardPool"`
	StageColor    string `json:"stageColor"`
	LastResetDate string `json:"lastResetDate"`
	ShardWeek     string `json:"shardWeek"`
	SchemaVersion int    `json:"schemaVersion"`
}

// Delta is an additive change to a profile's counters.
type Delta struct {
	Clicks      int64
	Coins       int64
	Shards      int64
	Collected   int64
	TodayClicks int
}

func (d Delta) IsZero() bool { return d == Delta{} }

type Store interface {
	// GetOrCreateProfile returns the profile for identity, creating a zeroed one on
	// first sight. A today-count recorded on an earlier day is reset before return.
	GetOrCreateProfile(ctx context.Context, identity, day string) (Profile, error)
	GetProfile(ctx context.Context, identity string) (Profile, error)
	// IncrementProfile adds d atomically. TodayClicks restarts from d.TodayClicks when
	// the stored day differs from day.
	IncrementProfile(ctx context.Context, identity string, d Delta, day string) error
	// FlushProfile merges lifetime counters with MAX so a late flush never lowers them.
	FlushProfile(ctx context.Context, p Profile) error
	SetDisplayName(ctx context.Context, identity, name string) error
	TopProfiles(ctx context.Context, n int) ([]Profile, error)
	ResetDailyQuotas(ctx context.Context, day string) error
	ResetScores(ctx context.Context) error

	LoadGlobal(ctx context.Context, defaults GlobalState) (GlobalState, error)
	SaveGlobal(ctx context.Context, g GlobalState) error

	// ImportLegacy applies a one-time import guarded by key. It reports false when key
	// was already imported.
	ImportLegacy(ctx context.Context, key string, profiles []Profile, g *GlobalState) (bool, error)

	Close() error
}

const SchemaVersion = 1

// DayKey is the UTC calendar date used for daily quotas.
func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// WeekKey is the ISO year-week used for the weekly shard refill.
func WeekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}
