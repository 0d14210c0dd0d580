package orbital

import (
	"math"
	"testing"
)

func TestSolveKeplerCircular(t *testing.T) {
	// With zero eccentricity the eccentric anomaly equals the mean anomaly.
	for _, M := range []float64{0, 0.5, math.Pi, 5.0} {
		E := solveKepler(M, 0)
		if math.Abs(E-M) > 1e-12 {
			t.Fatalf("solveKepler(%v, 0) = %v, want %v", M, E, M)
		}
	}
}

func TestSolveKeplerSatisfiesEquation(t *testing.T) {
	cases := []struct{ M, e float64 }{
		{0.1, 0.1},
		{1.0, 0.3},
		{2.5, 0.6},
		{5.9, 0.05},
	}
	for _, tc := range cases {
		E := solveKepler(tc.M, tc.e)
		back := normalizeRadians(E - tc.e*math.Sin(E))
		if math.Abs(back-tc.M) > 1e-9 {
			t.Fatalf("solveKepler(%v, %v): M residual %v", tc.M, tc.e, math.Abs(back-tc.M))
		}
	}
}

func TestSolveKeplerDeterministic(t *testing.T) {
	a := solveKepler(1.234, 0.4)
	for i := 0; i < 100; i++ {
		if b := solveKepler(1.234, 0.4); b != a {
			t.Fatalf("solveKepler not bit-identical: %v != %v", a, b)
		}
	}
}

func TestLocalStateHalfPeriodOpposition(t *testing.T) {
	// A circular orbit of period 100 days: after 50 days the position must
	// be diametrically opposite the epoch position.
	el := Elements{
		SemiMajorAxis: 1000,
		Period:        100,
	}
	start := localState(el, 0)
	half := localState(el, 50)
	want := start.Pos.Scale(-1)
	if half.Pos.Sub(want).Magnitude() > 1e-6 {
		t.Fatalf("half-period position = %+v, want %+v", half.Pos, want)
	}
	// Velocity also reverses on a circular orbit.
	if half.Vel.Add(start.Vel).Magnitude() > 1e-6 {
		t.Fatalf("half-period velocity = %+v, want %+v", half.Vel, start.Vel.Scale(-1))
	}
}

func TestLocalStateSpeedMatchesCircular(t *testing.T) {
	// In-plane speed for e=0 must be 2πa/T.
	el := Elements{SemiMajorAxis: 2000, Period: 40}
	st := localState(el, 7)
	want := 2 * math.Pi * el.SemiMajorAxis / el.Period
	if got := st.Vel.Magnitude(); math.Abs(got-want) > 1e-6*want {
		t.Fatalf("circular speed = %v, want %v", got, want)
	}
}

func TestCircularOrbit(t *testing.T) {
	center := State{Pos: Vec3{X: 10, Y: 20}, Vel: Vec3{X: 1}}
	st := CircularOrbit(1000, 5.972e24, center)
	if st.Pos.Sub(center.Pos).Magnitude() != 1000 {
		t.Fatalf("orbit radius = %v, want 1000", st.Pos.Sub(center.Pos).Magnitude())
	}
	rel := st.Vel.Sub(center.Vel).Magnitude()
	want := math.Sqrt(G * 5.972e24 / 1000)
	if math.Abs(rel-want) > 1e-9 {
		t.Fatalf("orbital speed = %v, want %v", rel, want)
	}
}

func TestOrbitPlaneMatchesInclination(t *testing.T) {
	// The specific angular momentum r×v is normal to the orbital plane, so
	// its z component fixes the inclination: cos(i) = ĥ·ẑ. It must hold at
	// every point of the orbit with the same normal direction.
	el := Elements{
		SemiMajorAxis:    1e6,
		Eccentricity:     0.3,
		Inclination:      45,
		ArgPeriapsis:     30,
		AscendingNode:    60,
		MeanAnomalyEpoch: 10,
		Period:           100,
	}
	wantCos := math.Cos(degToRad(el.Inclination))
	var first Vec3
	for i, tt := range []float64{0, 12.5, 33.3, 71, 99.9} {
		st := localState(el, tt)
		n := st.Pos.Cross(st.Vel).Normalize()
		if math.Abs(n.Z-wantCos) > 1e-9 {
			t.Fatalf("t=%v: plane normal z = %v, want cos(45°) = %v", tt, n.Z, wantCos)
		}
		if i == 0 {
			first = n
			continue
		}
		if n.Sub(first).Magnitude() > 1e-9 {
			t.Fatalf("t=%v: plane normal drifted from %+v to %+v", tt, first, n)
		}
	}
}

func TestCircularOrbitVelocityPerpendicular(t *testing.T) {
	center := State{Pos: Vec3{X: 5, Y: -3, Z: 1}, Vel: Vec3{Y: 2}}
	st := CircularOrbit(1000, 5.972e24, center)
	radial := st.Pos.Sub(center.Pos).Normalize()
	rel := st.Vel.Sub(center.Vel)
	if dot := radial.Dot(rel); math.Abs(dot) > 1e-9 {
		t.Fatalf("radial·velocity = %v, want 0", dot)
	}
}
