package tracker

import (
	"context"
	"testing"
	"time"
)

func TestIngest_BindsPendingOnFirstEcho(t *testing.T) {
	tr := New("bb", nil)
	now := time.Now()
	tr.RecordSend(Record{Timestamp: now, Content: "hi", Target: "general", Type: TypeChannel, CommandID: "cmd-1"})

	tr.Ingest(context.Background(), "hash123", "aa", true, now.Add(2*time.Second))

	if tr.PendingCount() != 0 {
		t.Fatalf("expected pending to drain after confirmation")
	}
	if tr.ConfirmedCount() != 1 {
		t.Fatalf("expected one confirmed record")
	}
	rec, ok := tr.Lookup("hash123")
	if !ok {
		t.Fatalf("expected confirmed record lookup to succeed")
	}
	if rec.RepeatCount != 0 {
		t.Fatalf("first echo should confirm, not count as a repeat: %+v", rec)
	}
}

func TestIngest_SubsequentEchoCountsAsRepeat(t *testing.T) {
	tr := New("bb", nil)
	now := time.Now()
	tr.RecordSend(Record{Timestamp: now, Content: "hi", Target: "general", Type: TypeChannel, CommandID: "cmd-1"})
	tr.Ingest(context.Background(), "hash123", "", false, now.Add(1*time.Second))

	tr.Ingest(context.Background(), "hash123", "cc", false, now.Add(2*time.Second))

	rec, ok := tr.Lookup("hash123")
	if !ok {
		t.Fatalf("expected confirmed record")
	}
	if rec.RepeatCount != 1 {
		t.Fatalf("expected repeat count 1, got %d", rec.RepeatCount)
	}
	if !rec.RepeaterPrefixes["cc"] {
		t.Fatalf("expected repeater prefix cc recorded: %+v", rec.RepeaterPrefixes)
	}
}

func TestIngest_BotPrefixNeverCountsAsRepeater(t *testing.T) {
	tr := New("bb", nil)
	now := time.Now()
	tr.RecordSend(Record{Timestamp: now, CommandID: "cmd-1"})
	tr.Ingest(context.Background(), "hash123", "", false, now.Add(1*time.Second))

	tr.Ingest(context.Background(), "hash123", "bb", false, now.Add(2*time.Second))

	rec, _ := tr.Lookup("hash123")
	if rec.RepeatCount != 0 {
		t.Fatalf("bot's own prefix must not count as a repeat: %+v", rec)
	}
}

func TestIngest_UnknownPrefixStillCountsWhenPathExists(t *testing.T) {
	tr := New("bb", nil)
	now := time.Now()
	tr.RecordSend(Record{Timestamp: now, CommandID: "cmd-1"})
	tr.Ingest(context.Background(), "hash123", "", false, now.Add(1*time.Second))

	tr.Ingest(context.Background(), "hash123", "", true, now.Add(2*time.Second))

	rec, _ := tr.Lookup("hash123")
	if rec.RepeatCount != 1 || !rec.RepeaterPrefixes[unknownRepeaterPrefix] {
		t.Fatalf("expected _unknown repeater recorded: %+v", rec)
	}
}

func TestIngest_OutsideMatchWindowNeverBinds(t *testing.T) {
	tr := New("bb", nil)
	now := time.Now()
	tr.RecordSend(Record{Timestamp: now, CommandID: "cmd-1"})

	tr.Ingest(context.Background(), "hash123", "", false, now.Add(45*time.Second))

	if tr.PendingCount() != 1 {
		t.Fatalf("expected pending record to survive when no echo arrives within the window")
	}
	if tr.ConfirmedCount() != 0 {
		t.Fatalf("expected no confirmation outside the match window")
	}
}

func TestSweep_DropsStalePendingAndZeroRepeatConfirmed(t *testing.T) {
	tr := New("bb", nil)
	base := time.Now()
	tr.RecordSend(Record{Timestamp: base, CommandID: "cmd-1"})
	tr.Ingest(context.Background(), "hash-confirmed", "", false, base.Add(time.Second))

	tr.RecordSend(Record{Timestamp: base, CommandID: "cmd-2"})

	tr.Sweep(base.Add(10 * time.Minute))

	if tr.PendingCount() != 0 {
		t.Fatalf("expected stale pending record to be swept")
	}
	if tr.ConfirmedCount() != 0 {
		t.Fatalf("expected zero-repeat confirmed record to be swept")
	}
}

func TestSweep_KeepsConfirmedRecordsWithRepeats(t *testing.T) {
	tr := New("bb", nil)
	base := time.Now()
	tr.RecordSend(Record{Timestamp: base, CommandID: "cmd-1"})
	tr.Ingest(context.Background(), "hash-confirmed", "", false, base.Add(time.Second))
	tr.Ingest(context.Background(), "hash-confirmed", "dd", false, base.Add(2*time.Second))

	tr.Sweep(base.Add(10 * time.Minute))

	if tr.ConfirmedCount() != 1 {
		t.Fatalf("expected confirmed record with repeats to survive sweep")
	}
}
