package orbital

import (
	"errors"
	"math"
	"testing"
)

const testDT = 1e-3 // game days per tick

func testBodies() []Body {
	return []Body{
		{ID: "sun", Name: "Sun", Mass: 1.989e30, Radius: 695700},
		{
			ID: "earth", Name: "Earth", Parent: "sun", Mass: 5.972e24, Radius: 6378,
			Orbit: Elements{SemiMajorAxis: AU, Eccentricity: 0.0167, Period: 365.256},
		},
		{
			ID: "moon", Name: "Moon", Parent: "earth", Mass: 7.342e22, Radius: 1737,
			Orbit: Elements{SemiMajorAxis: 384399, Eccentricity: 0.0549, Inclination: 5.145, Period: 27.32},
		},
	}
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	s, err := NewSystem(testDT, testBodies())
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return s
}

func TestNewSystemValidation(t *testing.T) {
	cases := []struct {
		name   string
		bodies []Body
	}{
		{"empty", nil},
		{"unknown parent", []Body{
			{ID: "a"},
			{ID: "b", Parent: "nope", Orbit: Elements{Period: 1}},
		}},
		{"two roots", []Body{{ID: "a"}, {ID: "b"}}},
		{"no root", []Body{
			{ID: "a", Parent: "b", Orbit: Elements{Period: 1}},
			{ID: "b", Parent: "a", Orbit: Elements{Period: 1}},
		}},
		{"duplicate id", []Body{
			{ID: "a"},
			{ID: "a", Parent: "a", Orbit: Elements{Period: 1}},
		}},
		{"zero period", []Body{
			{ID: "a"},
			{ID: "b", Parent: "a"},
		}},
	}
	for _, tc := range cases {
		if _, err := NewSystem(testDT, tc.bodies); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestBodyStatePure(t *testing.T) {
	s := newTestSystem(t)
	first, err := s.BodyState("moon", 12345)
	if err != nil {
		t.Fatalf("BodyState: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := s.BodyState("moon", 12345)
		if err != nil {
			t.Fatalf("BodyState: %v", err)
		}
		if again != first {
			t.Fatalf("BodyState not bit-identical: %+v != %+v", again, first)
		}
	}
}

func TestBodyStateUnknown(t *testing.T) {
	s := newTestSystem(t)
	if _, err := s.BodyState("pluto", 0); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
}

func TestBodyStateParentChain(t *testing.T) {
	s := newTestSystem(t)
	const tick = 777
	earth, _ := s.BodyState("earth", tick)
	moon, _ := s.BodyState("moon", tick)

	local := moon.Pos.Sub(earth.Pos)
	// The moon stays within periapsis..apoapsis of its parent.
	a, e := 384399.0, 0.0549
	r := local.Magnitude()
	if r < a*(1-e)-1 || r > a*(1+e)+1 {
		t.Fatalf("moon-earth distance %v outside [%v, %v]", r, a*(1-e), a*(1+e))
	}
}

func TestBodyStateHalfPeriodOppositionTicks(t *testing.T) {
	// Circular orbit of radius 1000 with a period of exactly 100 ticks:
	// after 50 ticks the position is diametrically opposite tick 0.
	bodies := []Body{
		{ID: "center", Mass: 1e24},
		{ID: "a", Parent: "center", Orbit: Elements{
			SemiMajorAxis: 1000,
			Period:        100 * testDT,
		}},
	}
	s, err := NewSystem(testDT, bodies)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	start, _ := s.BodyState("a", 0)
	half, _ := s.BodyState("a", 50)
	if half.Pos.Sub(start.Pos.Scale(-1)).Magnitude() > 1e-6 {
		t.Fatalf("tick-50 position %+v not opposite tick-0 %+v", half.Pos, start.Pos)
	}
	full, _ := s.BodyState("a", 100)
	if full.Pos.Sub(start.Pos).Magnitude() > 1e-6 {
		t.Fatalf("tick-100 position %+v did not return to start %+v", full.Pos, start.Pos)
	}
}

func TestStatesAtMatchesBodyState(t *testing.T) {
	s := newTestSystem(t)
	const tick = 4242
	states := s.StatesAt(tick)
	if len(states) != 3 {
		t.Fatalf("StatesAt returned %d states, want 3", len(states))
	}
	for id, st := range states {
		direct, err := s.BodyState(id, tick)
		if err != nil {
			t.Fatalf("BodyState(%s): %v", id, err)
		}
		if st != direct {
			t.Fatalf("StatesAt[%s] = %+v, BodyState = %+v", id, st, direct)
		}
	}
}

func TestHillRadii(t *testing.T) {
	s := newTestSystem(t)
	root, err := s.HillRadius("sun")
	if err != nil || !math.IsInf(root, 1) {
		t.Fatalf("root hill radius = %v, %v; want +Inf", root, err)
	}
	earth, _ := s.HillRadius("earth")
	moon, _ := s.HillRadius("moon")
	if earth <= 0 || moon <= 0 {
		t.Fatalf("hill radii must be positive: earth=%v moon=%v", earth, moon)
	}
	if moon >= earth {
		t.Fatalf("moon hill radius %v should be smaller than earth's %v", moon, earth)
	}
	// Earth's hill sphere is roughly 0.01 AU; sanity-check the magnitude.
	if earth < 1e5 || earth > 1e7 {
		t.Fatalf("earth hill radius %v km outside plausible range", earth)
	}
}

func TestInfluencers(t *testing.T) {
	s := newTestSystem(t)
	const tick = 10
	states := s.StatesAt(tick)

	// A point right next to the moon is influenced by sun, earth and moon,
	// with the moon as main influencer.
	near := states["moon"].Pos.Add(Vec3{X: 100})
	inf := s.Influencers(near, states)
	if len(inf.Bodies) != 3 {
		t.Fatalf("influencers = %v, want all three bodies", inf.Bodies)
	}
	if inf.Main != "moon" {
		t.Fatalf("main influencer = %q, want moon", inf.Main)
	}

	// A point far outside every planetary hill sphere only feels the sun.
	farAway := Vec3{X: 40 * AU}
	inf = s.Influencers(farAway, states)
	if len(inf.Bodies) != 1 || inf.Main != "sun" {
		t.Fatalf("deep-space influence = %+v, want sun only", inf)
	}
}
