package legacy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"avocado.town/internal/persistence/store"
)

const mixedDB = `{
  "highscores": {
    "0xnumber": 42,
    "0xobject": {"clicks": 42, "coins": 0, "shards": 0},
    "0xrich": {"clicks": 7.9, "coins": 3, "shards": 2},
    "0xbroken": {"clicks": -5}
  },
  "weeklyShards": 61,
  "lastReset": "Fri Oct 16 2026"
}`

func TestParse_NumericAndObjectRecordsNormaliseIdentically(t *testing.T) {
	snap, err := Parse(strings.NewReader(mixedDB))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	byID := map[string]store.Profile{}
	for _, p := range snap.Profiles {
		byID[p.Identity] = p
	}
	num, obj := byID["0xnumber"], byID["0xobject"]
	num.Identity, obj.Identity = "", ""
	if num != obj {
		t.Fatalf("numeric %+v != object %+v", num, obj)
	}
	if r := byID["0xrich"]; r.Clicks != 7 || r.Coins != 3 || r.Shards != 2 {
		t.Fatalf("rich record: %+v", r)
	}
	if b := byID["0xbroken"]; b.Clicks != 0 {
		t.Fatalf("negative clicks kept: %+v", b)
	}
	if snap.ShardPool == nil || *snap.ShardPool != 61 {
		t.Fatalf("shard pool: %v", snap.ShardPool)
	}
	if snap.LastReset != "2026-10-16" {
		t.Fatalf("last reset: %q", snap.LastReset)
	}
	if snap.Profiles[0].Identity != "0xbroken" {
		t.Fatalf("profiles not sorted: %+v", snap.Profiles)
	}
}

func TestParse_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"not json":   `{`,
		"bad record": `{"highscores":{"0xa":"lots"}}`,
		"bad date":   `{"highscores":{},"lastReset":"someday"}`,
		"bad clicks": `{"highscores":{"0xa":{"clicks":"x"}}}`,
	} {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestImport_AppliesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	if err := os.WriteFile(path, []byte(mixedDB), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	ctx := context.Background()
	mem := store.NewMemory()
	defaults := store.GlobalState{Total: 10, ShardPool: 100, StageColor: "#5d4037"}
	ok, err := Import(ctx, mem, snap, defaults, 100)
	if err != nil || !ok {
		t.Fatalf("import: ok=%v err=%v", ok, err)
	}
	ok, err = Import(ctx, mem, snap, defaults, 100)
	if err != nil || ok {
		t.Fatalf("re-import: ok=%v err=%v", ok, err)
	}

	p, err := mem.GetProfile(ctx, "0xrich")
	if err != nil || p.Coins != 3 {
		t.Fatalf("profile: %+v err=%v", p, err)
	}
	g, _ := mem.LoadGlobal(ctx, defaults)
	if g.Total != 10 || g.ShardPool != 61 || g.ShardWeek != "2026-W42" {
		t.Fatalf("global: %+v", g)
	}
}

func TestImport_CapsShardPool(t *testing.T) {
	snap, err := Parse(strings.NewReader(`{"highscores":{},"weeklyShards":500}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mem := store.NewMemory()
	if _, err := Import(context.Background(), mem, snap, store.GlobalState{}, 100); err != nil {
		t.Fatalf("import: %v", err)
	}
	g, _ := mem.LoadGlobal(context.Background(), store.GlobalState{})
	if g.ShardPool != 100 {
		t.Fatalf("pool=%d want 100", g.ShardPool)
	}
}
