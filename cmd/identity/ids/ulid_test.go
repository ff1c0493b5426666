package ids

import (
	"testing"
	"time"
)

func TestNewULID_SortsByTime(t *testing.T) {
	a, err := NewULID(time.UnixMilli(1_000))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	b, err := NewULID(time.UnixMilli(2_000))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected lengths %d %d", len(a), len(b))
	}
	if a >= b {
		t.Fatalf("expected %s < %s", a, b)
	}
}

func TestNewFamilyID(t *testing.T) {
	id, err := NewFamilyID()
	if err != nil {
		t.Fatalf("NewFamilyID: %v", err)
	}
	if !ValidFamilyID(id) {
		t.Fatalf("%q is not a uuid", id)
	}
	if ValidFamilyID("not-a-uuid") {
		t.Fatalf("expected invalid")
	}
}
