package vectorstore

import "testing"

func TestPointIDIsDeterministic(t *testing.T) {
	a := PointID("file:main.go:chunk:0")
	b := PointID("file:main.go:chunk:0")
	if a != b {
		t.Fatalf("expected deterministic id, got %q and %q", a, b)
	}
}

func TestPointIDDiffersByKey(t *testing.T) {
	a := PointID("file:main.go:chunk:0")
	b := PointID("file:main.go:chunk:1")
	if a == b {
		t.Fatalf("expected distinct ids for distinct keys, both were %q", a)
	}
}
