package universe

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"orrery/internal/orbital"
)

func TestSeedBuildsValidSystem(t *testing.T) {
	sys, err := orbital.NewSystem(1e-3, Seed())
	if err != nil {
		t.Fatalf("seed universe invalid: %v", err)
	}
	if sys.Root() != "sun" {
		t.Fatalf("seed root = %q, want sun", sys.Root())
	}
	if len(sys.Bodies()) != len(Seed()) {
		t.Fatalf("system has %d bodies, seed has %d", len(sys.Bodies()), len(Seed()))
	}
	// Every body must produce a finite state.
	for _, b := range sys.Bodies() {
		st, err := sys.BodyState(b.ID, 1000)
		if err != nil {
			t.Fatalf("BodyState(%s): %v", b.ID, err)
		}
		if st.Pos.Magnitude() > 50*orbital.AU {
			t.Fatalf("%s at implausible distance %v km", b.ID, st.Pos.Magnitude())
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.json")
	if err := WriteFile(path, Seed()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bodies, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(bodies) != len(Seed()) {
		t.Fatalf("loaded %d bodies, want %d", len(bodies), len(Seed()))
	}
	if bodies[0].ID != Seed()[0].ID {
		t.Fatalf("loaded first body %q, want %q", bodies[0].ID, Seed()[0].ID)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.db")
	store, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Save(Seed()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if int(n) != len(Seed()) {
		t.Fatalf("stored %d bodies, want %d", n, len(Seed()))
	}
	bodies, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sys, err := orbital.NewSystem(1e-3, bodies)
	if err != nil {
		t.Fatalf("stored universe invalid: %v", err)
	}
	moon, err := sys.Body("moon")
	if err != nil {
		t.Fatalf("moon missing after round trip: %v", err)
	}
	if moon.Orbit.SemiMajorAxis != 384399.0 {
		t.Fatalf("moon semi-major axis = %v, want 384399", moon.Orbit.SemiMajorAxis)
	}
	// Saving again must replace, not append.
	if err := store.Save(Seed()); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	n, _ = store.Count()
	if int(n) != len(Seed()) {
		t.Fatalf("after re-save stored %d bodies, want %d", n, len(Seed()))
	}
}
