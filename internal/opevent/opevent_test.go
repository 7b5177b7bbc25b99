package opevent

import "testing"

func TestPhaseTag(t *testing.T) {
	e := New(1, Install, "0x1000")
	if got := e.PhaseTag(); got != "#install" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultEnricherAnnotatesKnownPhases(t *testing.T) {
	e := New(1, Syscall, "mmap", DefaultEnricher)
	if e.Annotations.Get("syscall") != "mmap" {
		t.Fatalf("got %+v", e.Annotations)
	}

	e2 := New(1, Install, "0xdead", DefaultEnricher)
	if e2.Annotations.Get("call_site") != "0xdead" {
		t.Fatalf("got %+v", e2.Annotations)
	}
}

func TestDefaultEnricherIgnoresUnknownPhase(t *testing.T) {
	e := New(1, Attach, "detail", DefaultEnricher)
	if len(e.Annotations) != 0 {
		t.Fatalf("expected no annotations, got %+v", e.Annotations)
	}
}

func TestHistoryRecentOrderBeforeWrap(t *testing.T) {
	h := NewHistory(4)
	h.Record(1, Attach, "a")
	h.Record(1, Parse, "b")
	h.Record(1, Stage, "c")

	got := h.Recent(0)
	if len(got) != 3 {
		t.Fatalf("got %d events", len(got))
	}
	if got[0].Phase != Attach || got[2].Phase != Stage {
		t.Fatalf("wrong order: %+v", got)
	}
}

func TestHistoryEvictsOldestOnWrap(t *testing.T) {
	h := NewHistory(2)
	h.Record(1, Attach, "a")
	h.Record(1, Parse, "b")
	h.Record(1, Stage, "c")

	got := h.Recent(0)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Phase != Parse || got[1].Phase != Stage {
		t.Fatalf("expected [Parse, Stage] after eviction, got %+v", got)
	}
}

func TestHistoryForPIDFilters(t *testing.T) {
	h := NewHistory(8)
	h.Record(1, Attach, "a")
	h.Record(2, Attach, "b")
	h.Record(1, Detach, "c")

	got := h.ForPID(1)
	if len(got) != 2 {
		t.Fatalf("got %d events for pid 1, want 2", len(got))
	}
}

func TestHistoryListenFuncWiresIntoCallbackShape(t *testing.T) {
	h := NewHistory(4)
	fn := h.ListenFunc()
	fn(7, "syscall", "ptrace")

	got := h.Recent(0)
	if len(got) != 1 || got[0].PID != 7 || got[0].Phase != Syscall {
		t.Fatalf("got %+v", got)
	}
}
