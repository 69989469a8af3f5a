package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"time"

	persistlog "avocado.town/internal/persistence/log"
)

type journalFilter struct {
	Event    string
	Identity string
	Since    time.Time
	Limit    int
}

func (f journalFilter) match(e persistlog.Entry) bool {
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.Identity != "" && e.Identity != f.Identity {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	return true
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	event := fs.String("event", "", "event filter (e.g. message, game-over-reset)")
	identity := fs.String("identity", "", "identity filter")
	since := fs.Duration("since", 0, "only entries newer than this (e.g. 24h)")
	limit := fs.Int("limit", 0, "print at most this many of the newest matches (0 = all)")
	_ = fs.Parse(args)

	f := journalFilter{Event: *event, Identity: *identity, Limit: *limit}
	if *since > 0 {
		f.Since = time.Now().Add(-*since)
	}
	if err := printJournal(os.Stdout, *dataDir, f); err != nil {
		fail(1, "journal", err)
	}
}

func printJournal(w io.Writer, dataDir string, f journalFilter) error {
	files, err := persistlog.JournalFiles(dataDir)
	if err != nil {
		return err
	}
	var out []persistlog.Entry
	for _, path := range files {
		entries, err := persistlog.ReadJournal(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if f.match(e) {
				out = append(out, e)
			}
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	enc := json.NewEncoder(w)
	for _, e := range out {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
