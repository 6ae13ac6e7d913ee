package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)

	events := []struct {
		typ string
		raw string
	}{
		{"WORLD_JOINED", `{"type":"WORLD_JOINED","player_id":"P1"}`},
		{"CHUNKS_DATA", `{"type":"CHUNKS_DATA","chunks":[]}`},
		{"AREA_EXPLORED", `{"type":"AREA_EXPLORED","x":8,"y":8,"radius":6}`},
	}
	for _, ev := range events {
		if err := j.WriteEvent(ev.typ, []byte(ev.raw)); err != nil {
			t.Fatalf("WriteEvent(%s): %v", ev.typ, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("journal files = %v, err = %v", files, err)
	}

	got, err := Read(files[0])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("read %d entries, want %d", len(got), len(events))
	}
	for i, e := range got {
		if e.Type != events[i].typ {
			t.Fatalf("entry %d type = %q, want %q", i, e.Type, events[i].typ)
		}
		if string(e.Raw) != events[i].raw {
			t.Fatalf("entry %d raw = %s", i, e.Raw)
		}
		if e.ReceivedAt.IsZero() {
			t.Fatalf("entry %d has zero timestamp", i)
		}
	}
}

func TestWriteEventCopiesRaw(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)

	buf := []byte(`{"type":"ERROR","message":"x"}`)
	if err := j.WriteEvent("ERROR", buf); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	for i := range buf {
		buf[i] = '!'
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	got, err := Read(files[0])
	if err != nil || len(got) != 1 {
		t.Fatalf("Read: %v (%d entries)", err, len(got))
	}
	if string(got[0].Raw) != `{"type":"ERROR","message":"x"}` {
		t.Fatalf("journal aliased caller buffer: %s", got[0].Raw)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "events-none.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}
