package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"avocado.town/internal/persistence/legacy"
	"avocado.town/internal/persistence/store"
	"avocado.town/internal/sim/engine"
	"avocado.town/internal/sim/tuning"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dbPath := fs.String("db", envOr("AVOCADO_DB_PATH", "data/avocado.sqlite"), "sqlite db path")
	limit := fs.Int("limit", 10, "result limit (leaderboard)")
	_ = fs.Parse(args)

	q := "leaderboard"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := store.OpenSQLite(ctx, *dbPath)
	if err != nil {
		fail(1, "open", err)
	}
	defer st.Close()

	if err := runQuery(ctx, os.Stdout, st, q, fs.Args(), *limit); err != nil {
		fail(1, q, err)
	}
}

// runQuery prints one JSON document per result line.
func runQuery(ctx context.Context, w io.Writer, st store.Store, q string, args []string, limit int) error {
	enc := json.NewEncoder(w)
	switch q {
	case "leaderboard":
		if limit <= 0 {
			limit = 10
		}
		top, err := st.TopProfiles(ctx, limit)
		if err != nil {
			return err
		}
		for _, p := range top {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
		return nil
	case "profile":
		if len(args) < 2 {
			return errors.New("usage: db profile <identity>")
		}
		p, err := st.GetProfile(ctx, args[1])
		if err != nil {
			return err
		}
		return enc.Encode(p)
	case "global":
		g, err := st.LoadGlobal(ctx, engine.DefaultGlobal(tuning.Defaults()))
		if err != nil {
			return err
		}
		return enc.Encode(g)
	default:
		return fmt.Errorf("unknown query %q (want leaderboard|profile|global)", q)
	}
}

func importLegacyCmd(args []string) {
	fs := flag.NewFlagSet("import-legacy", flag.ExitOnError)
	dbPath := fs.String("db", envOr("AVOCADO_DB_PATH", "data/avocado.sqlite"), "sqlite db path")
	src := fs.String("legacy", "database.json", "legacy database.json path")
	tuningPath := fs.String("tuning", "configs/tuning.yaml", "path to tuning.yaml")
	_ = fs.Parse(args)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fail(1, "tuning", err)
		}
		tune = tuning.Defaults()
	}
	snap, err := legacy.ReadFile(*src)
	if err != nil {
		fail(1, "read legacy", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	st, err := store.OpenSQLite(ctx, *dbPath)
	if err != nil {
		fail(1, "open", err)
	}
	defer st.Close()

	applied, err := legacy.Import(ctx, st, snap, engine.DefaultGlobal(tune), tune.ShardPoolCap)
	if err != nil {
		fail(1, "import", err)
	}
	if !applied {
		fmt.Printf("already imported: key=%s\n", snap.Key)
		return
	}
	fmt.Printf("import ok: key=%s profiles=%d db=%s\n", snap.Key, len(snap.Profiles), *dbPath)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
