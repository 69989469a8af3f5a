// Package legacy reads the JSON database written by the first server generation
// and imports it into a store exactly once.
//
// The old file kept one entry per wallet under "highscores". Early versions
// stored a bare click count; later ones an object with clicks, coins and shards.
// Both shapes are normalised to store.Profile.
package legacy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"avocado.town/internal/persistence/store"
)

const SnapshotVersion = 1

// Snapshot is the normalised content of a legacy database file.
type Snapshot struct {
	Version  int
	Key      string
	Profiles []store.Profile

	// Nil when the file did not carry a pool.
	ShardPool *int
	// LastReset is the file's reset date as YYYY-MM-DD, or "".
	LastReset string
}

type file struct {
	Highscores   map[string]json.RawMessage `json:"highscores"`
	WeeklyShards *float64                   `json:"weeklyShards"`
	LastReset    string                     `json:"lastReset"`
}

type record struct {
	Clicks    float64 `json:"clicks"`
	Coins     float64 `json:"coins"`
	Shards    float64 `json:"shards"`
	Collected float64 `json:"collected"`
}

func ReadFile(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return Parse(bytes.NewReader(b))
}

func Parse(r io.Reader) (Snapshot, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, err
	}
	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return Snapshot{}, fmt.Errorf("legacy: decode: %w", err)
	}

	sum := sha256.Sum256(b)
	snap := Snapshot{
		Version: SnapshotVersion,
		Key:     "database.json:" + hex.EncodeToString(sum[:8]),
	}
	for addr, raw := range f.Highscores {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("legacy: highscore %s: %w", addr, err)
		}
		snap.Profiles = append(snap.Profiles, store.Profile{
			Identity:  addr,
			Clicks:    count(rec.Clicks),
			Coins:     count(rec.Coins),
			Shards:    count(rec.Shards),
			Collected: count(rec.Collected),
		})
	}
	sort.Slice(snap.Profiles, func(i, j int) bool { return snap.Profiles[i].Identity < snap.Profiles[j].Identity })

	if f.WeeklyShards != nil {
		n := int(count(*f.WeeklyShards))
		snap.ShardPool = &n
	}
	if f.LastReset != "" {
		day, err := parseResetDate(f.LastReset)
		if err != nil {
			return Snapshot{}, fmt.Errorf("legacy: lastReset: %w", err)
		}
		snap.LastReset = day
	}
	return snap, nil
}

// decodeRecord accepts either a bare click count or an object.
func decodeRecord(raw json.RawMessage) (record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return record{}, nil
	}
	if raw[0] == '{' {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return record{}, err
		}
		return rec, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return record{}, fmt.Errorf("expected number or object: %w", err)
	}
	return record{Clicks: n}, nil
}

func count(v float64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Dates were written with JavaScript's Date.toDateString ("Fri Oct 16 2026").
var resetLayouts = []string{"Mon Jan 02 2006", "Mon Jan 2 2006", "2006-01-02", time.RFC3339}

func parseResetDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range resetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return store.DayKey(t), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// Import writes snap into st unless its key was imported before. The pool is
// capped at shardCap and the reset date becomes the weekly refill guard, so a
// file written this week keeps its remaining shards.
func Import(ctx context.Context, st store.Store, snap Snapshot, defaults store.GlobalState, shardCap int) (bool, error) {
	if snap.Version != SnapshotVersion {
		return false, fmt.Errorf("legacy: unsupported snapshot version %d", snap.Version)
	}
	g, err := st.LoadGlobal(ctx, defaults)
	if err != nil {
		return false, fmt.Errorf("legacy: load global: %w", err)
	}
	if snap.ShardPool != nil {
		g.ShardPool = min(max(*snap.ShardPool, 0), shardCap)
	}
	if snap.LastReset != "" {
		t, err := time.Parse("2006-01-02", snap.LastReset)
		if err == nil {
			g.ShardWeek = store.WeekKey(t)
		}
	}
	return st.ImportLegacy(ctx, snap.Key, snap.Profiles, &g)
}
