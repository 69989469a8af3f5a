package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_RepoConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if got.DailyClickCap != want.DailyClickCap || got.ResetBuffer != want.ResetBuffer || got.MaxDecayItems != want.MaxDecayItems {
		t.Fatalf("config drifted from defaults: got=%+v", got)
	}
	if len(got.Stages) != len(want.Stages) {
		t.Fatalf("stages=%d want %d", len(got.Stages), len(want.Stages))
	}
	if got.DecayTick() != time.Second || got.GrowRevert() != 3*time.Second {
		t.Fatalf("durations: decay=%s grow=%s", got.DecayTick(), got.GrowRevert())
	}
}

func TestLoad_PartialOverridesKeepDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "daily_click_cap: 5\nstages:\n  - {threshold: 200, color: \"#222222\"}\n  - {threshold: 0, color: \"#111111\"}\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DailyClickCap != 5 {
		t.Fatalf("daily_click_cap=%d want 5", got.DailyClickCap)
	}
	if got.ShardPoolCap != 100 {
		t.Fatalf("shard_pool_cap=%d want default 100", got.ShardPoolCap)
	}
	if len(got.Stages) != 2 || got.Stages[0].Threshold != 0 || got.Stages[1].Color != "#222222" {
		t.Fatalf("stages not replaced+sorted: %+v", got.Stages)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := map[string]func(*Tuning){
		"zero cap":       func(t *Tuning) { t.DailyClickCap = 0 },
		"no stages":      func(t *Tuning) { t.Stages = nil },
		"dup threshold":  func(t *Tuning) { t.Stages = []Stage{{0, "#1"}, {0, "#2"}} },
		"zero buffer":    func(t *Tuning) { t.ResetBuffer = 0 },
		"chance":         func(t *Tuning) { t.CoinSpawnChance = 1.5 },
		"zero decay ms":  func(t *Tuning) { t.DecayTickMs = 0 },
		"zero name len":  func(t *Tuning) { t.NameMaxLen = 0 },
		"negative items": func(t *Tuning) { t.MaxDecayItems = -1 },
	}
	for name, mutate := range cases {
		tu := Defaults()
		mutate(&tu)
		if err := tu.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
