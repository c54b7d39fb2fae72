package kvstore

import "testing"

func TestApplySetAndGet(t *testing.T) {
	s := New()
	data, err := Encode(Cmd{Type: CmdSet, Key: "a", Value: "1"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := s.Apply(data); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	v, err := s.Get("a")
	if err != nil || v != "1" {
		t.Errorf("Get(a) = (%q, %v), want (1, nil)", v, err)
	}
}

func TestApplyDelete(t *testing.T) {
	s := New()
	set, _ := Encode(Cmd{Type: CmdSet, Key: "a", Value: "1"})
	del, _ := Encode(Cmd{Type: CmdDel, Key: "a"})
	s.Apply(set)
	s.Apply(del)

	if _, err := s.Get("a"); err == nil {
		t.Error("Get(a) should fail after delete")
	}
}

func TestApplyNoOpEntry(t *testing.T) {
	s := New()
	if err := s.Apply(nil); err != nil {
		t.Errorf("Apply(nil) should be a harmless no-op, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	set, _ := Encode(Cmd{Type: CmdSet, Key: "a", Value: "1"})
	s.Apply(set)

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	restored := New()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	v, err := restored.Get("a")
	if err != nil || v != "1" {
		t.Errorf("Get(a) after restore = (%q, %v), want (1, nil)", v, err)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	if _, err := s.Get("missing"); err == nil {
		t.Error("Get should fail for a key that was never set")
	}
	if _, err := s.Get(""); err == nil {
		t.Error("Get should fail for an empty key")
	}
}
