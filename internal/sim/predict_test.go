package sim

import (
	"testing"

	"orrery/internal/orbital"
)

func TestPredictMatchesAdvanceWithoutManeuvers(t *testing.T) {
	sys := testSystem(t)
	fleet := earthOrbiter(t, sys, "f1", 1e5)

	pred, err := Predict(sys, fleet, 50, 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	p := NewPropagator(sys, 0)
	if err := p.AddFleet(fleet); err != nil {
		t.Fatalf("AddFleet: %v", err)
	}
	for tick := orbital.Tick(1); tick <= 50; tick++ {
		if err := p.AdvanceTo(tick); err != nil {
			t.Fatalf("AdvanceTo(%d): %v", tick, err)
		}
		s, ok := pred.Next()
		if !ok {
			t.Fatalf("prediction ended early at tick %d", tick)
		}
		f, _ := p.Fleet("f1")
		if s.Tick != tick || s.Pos != f.Pos || s.Vel != f.Vel {
			t.Fatalf("tick %d: prediction %+v != authoritative %+v", tick, s, f)
		}
	}
	if _, ok := pred.Next(); ok {
		t.Fatal("prediction extended past its horizon")
	}
}

func TestPredictDoesNotMutateAuthoritativeState(t *testing.T) {
	sys := testSystem(t)
	p := NewPropagator(sys, 0)
	if err := p.AddFleet(earthOrbiter(t, sys, "f1", 1e5)); err != nil {
		t.Fatalf("AddFleet: %v", err)
	}
	before, _ := p.Fleet("f1")

	pred, err := p.Predict("f1", 100, 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	pred.Samples(100)

	after, _ := p.Fleet("f1")
	if before.Pos != after.Pos || before.Vel != after.Vel || before.Tick != after.Tick {
		t.Fatalf("prediction mutated authoritative state: %+v -> %+v", before, after)
	}
	if p.Tick() != 0 {
		t.Fatalf("prediction advanced the authoritative tick to %d", p.Tick())
	}
}

func TestPredictReset(t *testing.T) {
	sys := testSystem(t)
	fleet := earthOrbiter(t, sys, "f1", 1e5)
	pred, err := Predict(sys, fleet, 30, 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	first := pred.Samples(30)
	pred.Reset()
	second := pred.Samples(30)
	if len(first) != 30 || len(second) != 30 {
		t.Fatalf("sample counts %d/%d, want 30/30", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("restart diverged at sample %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPredictStride(t *testing.T) {
	sys := testSystem(t)
	fleet := earthOrbiter(t, sys, "f1", 1e5)

	dense, err := Predict(sys, fleet, 30, 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	strided, err := Predict(sys, fleet, 30, 3)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	all := dense.Samples(30)
	sparse := strided.Samples(10)
	if len(sparse) != 10 {
		t.Fatalf("strided samples = %d, want 10", len(sparse))
	}
	for i, s := range sparse {
		if s != all[(i+1)*3-1] {
			t.Fatalf("strided sample %d = %+v, want dense sample %+v", i, s, all[(i+1)*3-1])
		}
	}
}

func TestPredictConsumesManeuvers(t *testing.T) {
	sys := testSystem(t)
	fleet := earthOrbiter(t, sys, "f1", 1e5)
	burned := fleet.Clone()
	if err := burned.ScheduleManeuver(Maneuver{Tick: 10, DeltaV: orbital.Vec3{X: 5000}}); err != nil {
		t.Fatalf("ScheduleManeuver: %v", err)
	}

	base, _ := Predict(sys, fleet, 40, 1)
	alt, _ := Predict(sys, burned, 40, 1)
	baseSamples := base.Samples(40)
	altSamples := alt.Samples(40)

	// Identical until the burn tick, diverging after it.
	for i := 0; i < 10; i++ {
		if baseSamples[i] != altSamples[i] {
			t.Fatalf("trajectories diverged before the burn at sample %d", i)
		}
	}
	if baseSamples[12].Pos == altSamples[12].Pos {
		t.Fatal("burn had no effect on the predicted trajectory")
	}
}

func TestPredictRejectsBadHorizon(t *testing.T) {
	sys := testSystem(t)
	fleet := earthOrbiter(t, sys, "f1", 1e5)
	fleet.Tick = 100
	if _, err := Predict(sys, fleet, 100, 1); err == nil {
		t.Fatal("expected error for horizon at reference tick")
	}
}
