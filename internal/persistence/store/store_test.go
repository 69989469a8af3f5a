package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type opener func(t *testing.T) Store

func openStores() map[string]opener {
	return map[string]opener{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "avocado.sqlite"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range openStores() {
		t.Run(name, func(t *testing.T) { fn(t, open(t)) })
	}
}

func TestGetOrCreateProfile_ResetsStaleDay(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.GetOrCreateProfile(ctx, "0xabc", "2026-10-15")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if p.Identity != "0xabc" || p.Clicks != 0 || p.LastResetDate != "2026-10-15" {
			t.Fatalf("new profile: %+v", p)
		}
		if err := s.IncrementProfile(ctx, "0xabc", Delta{Clicks: 3, TodayClicks: 3}, "2026-10-15"); err != nil {
			t.Fatalf("increment: %v", err)
		}

		p, err = s.GetOrCreateProfile(ctx, "0xabc", "2026-10-16")
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if p.Clicks != 3 || p.TodayClicks != 0 || p.LastResetDate != "2026-10-16" {
			t.Fatalf("stale day not reset: %+v", p)
		}
	})
}

func TestIncrementProfile_DateAware(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 4; i++ {
			if err := s.IncrementProfile(ctx, "0xabc", Delta{Clicks: 1, TodayClicks: 1}, "2026-10-15"); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}
		if err := s.IncrementProfile(ctx, "0xabc", Delta{Coins: 1}, "2026-10-15"); err != nil {
			t.Fatalf("coin: %v", err)
		}
		if err := s.IncrementProfile(ctx, "0xabc", Delta{Clicks: 1, TodayClicks: 1}, "2026-10-16"); err != nil {
			t.Fatalf("next day: %v", err)
		}
		p, err := s.GetProfile(ctx, "0xabc")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Clicks != 5 || p.Coins != 1 || p.TodayClicks != 1 || p.LastResetDate != "2026-10-16" {
			t.Fatalf("profile: %+v", p)
		}
	})
}

func TestIncrementProfile_Concurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if err := s.IncrementProfile(ctx, "0xabc", Delta{Clicks: 1}, "2026-10-16"); err != nil {
						t.Errorf("increment: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
		p, err := s.GetProfile(ctx, "0xabc")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Clicks != 80 {
			t.Fatalf("lost increments: clicks=%d", p.Clicks)
		}
	})
}

func TestFlushProfile_NeverLowersCounters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.FlushProfile(ctx, Profile{Identity: "0xabc", Name: "al", Clicks: 10, Coins: 2, LastResetDate: "2026-10-16", TodayClicks: 7}); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if err := s.FlushProfile(ctx, Profile{Identity: "0xabc", Clicks: 4, Coins: 5, LastResetDate: "2026-10-16", TodayClicks: 3}); err != nil {
			t.Fatalf("late flush: %v", err)
		}
		p, err := s.GetProfile(ctx, "0xabc")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Clicks != 10 || p.Coins != 5 || p.TodayClicks != 7 || p.Name != "al" {
			t.Fatalf("merge: %+v", p)
		}
	})
}

func TestTopProfilesAndResets(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for id, clicks := range map[string]int64{"a": 5, "b": 9, "c": 5, "d": 0} {
			if err := s.FlushProfile(ctx, Profile{Identity: id, Clicks: clicks, TodayClicks: 2, LastResetDate: "2026-10-15"}); err != nil {
				t.Fatalf("flush %s: %v", id, err)
			}
		}
		if err := s.SetDisplayName(ctx, "b", "bee"); err != nil {
			t.Fatalf("rename: %v", err)
		}

		top, err := s.TopProfiles(ctx, 2)
		if err != nil {
			t.Fatalf("top: %v", err)
		}
		if len(top) != 2 || top[0].Identity != "b" || top[0].Name != "bee" || top[1].Identity != "a" {
			t.Fatalf("top order: %+v", top)
		}

		if err := s.ResetDailyQuotas(ctx, "2026-10-16"); err != nil {
			t.Fatalf("daily reset: %v", err)
		}
		if err := s.ResetScores(ctx); err != nil {
			t.Fatalf("score reset: %v", err)
		}
		p, _ := s.GetProfile(ctx, "b")
		if p.Clicks != 0 || p.TodayClicks != 0 || p.LastResetDate != "2026-10-16" || p.Name != "bee" {
			t.Fatalf("after resets: %+v", p)
		}
		if top, _ := s.TopProfiles(ctx, 10); len(top) != 0 {
			t.Fatalf("expected empty leaderboard, got %+v", top)
		}
	})
}

func TestGlobalState_LoadSave(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		def := GlobalState{ShardPool: 100, StageColor: "#5d4037"}
		g, err := s.LoadGlobal(ctx, def)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if g.ShardPool != 100 || g.SchemaVersion != SchemaVersion {
			t.Fatalf("defaults: %+v", g)
		}
		want := GlobalState{Total: 1234, ShardPool: 40, StageColor: "#4e342e", LastResetDate: "2026-10-16", ShardWeek: "2026-W42", SchemaVersion: SchemaVersion}
		if err := s.SaveGlobal(ctx, want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.LoadGlobal(ctx, def)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if got != want {
			t.Fatalf("global: got %+v want %+v", got, want)
		}
	})
}

func TestImportLegacy_Once(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		profiles := []Profile{{Identity: "0xabc", Clicks: 50, Coins: 1}}
		g := &GlobalState{Total: 900, ShardPool: 12}

		ok, err := s.ImportLegacy(ctx, "database.json", profiles, g)
		if err != nil || !ok {
			t.Fatalf("first import: ok=%v err=%v", ok, err)
		}
		ok, err = s.ImportLegacy(ctx, "database.json", []Profile{{Identity: "0xabc", Clicks: 999}}, nil)
		if err != nil || ok {
			t.Fatalf("second import: ok=%v err=%v", ok, err)
		}
		p, _ := s.GetProfile(ctx, "0xabc")
		if p.Clicks != 50 {
			t.Fatalf("import applied twice: %+v", p)
		}
		got, _ := s.LoadGlobal(ctx, GlobalState{})
		if got.Total != 900 || got.ShardPool != 12 {
			t.Fatalf("global import: %+v", got)
		}
	})
}

func TestGetProfile_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if _, err := s.GetProfile(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestOpenSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "avocado.sqlite")
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.FlushProfile(ctx, Profile{Identity: "0xabc", Clicks: 3}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("migrations applied %d times", n)
	}
	if p, err := s.GetProfile(ctx, "0xabc"); err != nil || p.Clicks != 3 {
		t.Fatalf("reopen profile: %+v err=%v", p, err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestUpSection(t *testing.T) {
	in := "-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;"
	if got := upSection(in); got != "\nCREATE TABLE a(x);\n" {
		t.Fatalf("upSection=%q", got)
	}
	if got := upSection("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("upSection without markers=%q", got)
	}
}

func TestDayAndWeekKeys(t *testing.T) {
	ts := time.Date(2026, 10, 16, 23, 30, 0, 0, time.FixedZone("x", -5*3600))
	if got := DayKey(ts); got != "2026-10-17" {
		t.Fatalf("DayKey=%s", got)
	}
	if got := WeekKey(ts); got != "2026-W42" {
		t.Fatalf("WeekKey=%s", got)
	}
}
