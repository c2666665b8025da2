package tagmodel

import "testing"

func TestNewTagHasNoHistory(t *testing.T) {
	tag := New(1, ModeBaseline, []byte("payload"))
	if len(tag.History) != 0 {
		t.Fatalf("new tag should have empty history, got %d entries", len(tag.History))
	}
	if string(tag.Content) != "payload" {
		t.Fatalf("content = %q, want payload", tag.Content)
	}
}

func TestSetContentAppendsToHistory(t *testing.T) {
	tag := New(1, ModeBaseline, []byte("v1"))
	tag.SetContent([]byte("v2"))
	tag.SetContent([]byte("v3"))

	if len(tag.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(tag.History))
	}
	if string(tag.History[0]) != "v1" || string(tag.History[1]) != "v2" {
		t.Fatalf("unexpected history order: %+v", tag.History)
	}
	if string(tag.Content) != "v3" {
		t.Fatalf("content = %q, want v3", tag.Content)
	}
}

func TestSetContentIsIndependentCopy(t *testing.T) {
	original := []byte("mutate-me")
	tag := New(1, ModeBaseline, original)
	original[0] = 'X'
	if tag.Content[0] == 'X' {
		t.Fatal("New should copy content, not alias the caller's slice")
	}
}

func TestRecordReadAndUpdateDoNotTouchContent(t *testing.T) {
	tag := New(1, ModeRFChain, []byte("stay"))
	tag.RecordRead(7, "scan")
	tag.RecordUpdate(9, "advance")

	if string(tag.Content) != "stay" {
		t.Fatalf("content mutated by event recording: %q", tag.Content)
	}
	if len(tag.History) != 0 {
		t.Fatalf("history mutated by event recording: %+v", tag.History)
	}
	if len(tag.Online.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(tag.Online.Events))
	}
	if tag.Online.Events[0].Type != EventRead || tag.Online.Events[0].Reader != 7 {
		t.Fatalf("unexpected first event: %+v", tag.Online.Events[0])
	}
	if tag.Online.Events[1].Type != EventUpdate || tag.Online.Events[1].Reader != 9 {
		t.Fatalf("unexpected second event: %+v", tag.Online.Events[1])
	}
}

func TestAppendStorageOrdersEntriesPerKey(t *testing.T) {
	tag := New(1, ModeRFChain, []byte("x"))
	tag.Online.AppendStorage("k1", 1, map[string]string{"b": "aa"})
	tag.Online.AppendStorage("k1", 2, map[string]string{"b": "bb"})
	tag.Online.AppendStorage("k2", 3, map[string]string{"b": "cc"})

	if len(tag.Online.Storage["k1"]) != 2 {
		t.Fatalf("expected 2 entries under k1, got %d", len(tag.Online.Storage["k1"]))
	}
	if tag.Online.Storage["k1"][0].Fields["b"] != "aa" || tag.Online.Storage["k1"][1].Fields["b"] != "bb" {
		t.Fatalf("entries out of order: %+v", tag.Online.Storage["k1"])
	}
	if len(tag.Online.Storage["k2"]) != 1 {
		t.Fatalf("expected 1 entry under k2, got %d", len(tag.Online.Storage["k2"]))
	}
}
