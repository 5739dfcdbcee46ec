package fs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"volfs/internal/logging"
)

func TestObserveSeesEveryCall(t *testing.T) {
	d, _, _ := setupDispatcher(t, 4096)
	ctx := context.Background()

	var events []Event
	ops := Observe(d, func(ev Event) { events = append(events, ev) })

	if _, err := ops.Lookup(ctx, RootDir, "volume"); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if _, err := ops.Write(ctx, HandleID(Volume), 100, []byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := ops.Mkdir(ctx, RootDir, "d", 0755); err == nil {
		t.Fatal("Mkdir should be refused")
	}

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Op != OpLookup || events[0].Name != "volume" || events[0].Err != nil {
		t.Errorf("Unexpected lookup event: %+v", events[0])
	}
	if events[1].Op != OpWrite || events[1].Offset != 100 || events[1].Size != 3 {
		t.Errorf("Unexpected write event: %+v", events[1])
	}
	if events[2].Op != OpMkdir || !errors.Is(events[2].Err, ErrNotSupported) {
		t.Errorf("Unexpected mkdir event: %+v", events[2])
	}
}

func TestObserveNilObserver(t *testing.T) {
	d, _, _ := setupDispatcher(t, 0)
	if Observe(d, nil) != Operations(d) {
		t.Error("Observe with a nil observer should return ops unchanged")
	}
}

func TestLogObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerTo(&buf, "ops")
	logger.SetLevel(logging.LevelDebug)
	obs := LogObserver(logger)

	obs(Event{Op: OpRead, Inode: Volume, Size: 10})
	if buf.Len() != 0 {
		t.Errorf("Successful reads should log at TRACE only, got %q", buf.String())
	}

	obs(Event{Op: OpMkdir, Inode: RootDir, Name: "d", Err: NewFSError(OpMkdir, RootDir, ErrNotSupported)})
	if !strings.Contains(buf.String(), "[DEBUG]") || !strings.Contains(buf.String(), "refused") {
		t.Errorf("Expected a DEBUG refusal, got %q", buf.String())
	}
	buf.Reset()

	obs(Event{Op: OpRead, Inode: Volume, Err: &BackingIOError{Op: OpRead, Err: errors.New("boom")}})
	if !strings.Contains(buf.String(), "[ERROR]") {
		t.Errorf("Expected an ERROR for a backing failure, got %q", buf.String())
	}
	buf.Reset()

	obs(Event{Op: OpGetAttr, Inode: Volume, Err: errors.New("stat failed")})
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Errorf("Expected a WARN for other failures, got %q", buf.String())
	}
}
