package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestEventJournal_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	j := NewEventJournal(dir)
	now := time.Date(2026, 10, 16, 9, 59, 0, 0, time.UTC)
	j.w.now = func() time.Time { return now }

	data, _ := json.Marshal(map[string]string{"text": "hi"})
	if err := j.Record(Entry{Event: "message", Identity: "0xabc", Data: data}); err != nil {
		t.Fatalf("record: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := j.Record(Entry{Event: "game-over-reset"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := JournalFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "journal", "events-2026-10-16-09.jsonl.zst"),
		filepath.Join(dir, "journal", "events-2026-10-16-10.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files=%v want %v", files, want)
	}

	entries, err := ReadJournal(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "message" || entries[0].Identity != "0xabc" {
		t.Fatalf("entries=%+v", entries)
	}
	if !entries[0].Time.Equal(time.Date(2026, 10, 16, 9, 59, 0, 0, time.UTC)) {
		t.Fatalf("time=%v", entries[0].Time)
	}
	if string(entries[0].Data) != `{"text":"hi"}` {
		t.Fatalf("data=%s", entries[0].Data)
	}
}

func TestEventJournal_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		j := NewEventJournal(dir)
		j.w.now = func() time.Time { return now }
		if err := j.Record(Entry{Event: "daily-reset"}); err != nil {
			t.Fatalf("record: %v", err)
		}
		_ = j.Close()
	}
	files, _ := JournalFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	entries, err := ReadJournal(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries across frames, got %d", len(entries))
	}
}
