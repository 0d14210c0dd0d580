package orbital

import "math"

// Fixed Newton-Raphson iteration count for Kepler's equation. A bounded,
// always-executed iteration count keeps server and clients bit-identical;
// cross-machine determinism matters more here than the last few digits.
const keplerIterations = 8

// solveKepler solves Kepler's equation M = E - e·sin(E) for the eccentric
// anomaly E, using Danby's starter and a fixed number of Newton-Raphson
// refinements. M in radians, result normalized to [0, 2π).
func solveKepler(M, e float64) float64 {
	E := M + e*math.Sin(M)*(1.0+e*math.Cos(M))
	for iter := 0; iter < keplerIterations; iter++ {
		delta := (E - e*math.Sin(E) - M) / (1.0 - e*math.Cos(E))
		E -= delta
	}
	return normalizeRadians(E)
}

// localState computes a body's position and velocity relative to its parent
// at game time t (days), from its static elements.
func localState(el Elements, t float64) State {
	M := normalizeRadians(degToRad(el.MeanAnomalyEpoch) + 2.0*math.Pi*t/el.Period)
	e := el.Eccentricity
	E := solveKepler(M, e)

	a := el.SemiMajorAxis
	sinE, cosE := math.Sincos(E)
	b := a * math.Sqrt(1.0-e*e)

	// Position in the orbital plane, periapsis along +x.
	xOrb := a * (cosE - e)
	yOrb := b * sinE

	// dE/dt from differentiating Kepler's equation: Ė = n / (1 - e·cosE).
	n := 2.0 * math.Pi / el.Period
	Edot := n / (1.0 - e*cosE)
	vxOrb := -a * sinE * Edot
	vyOrb := b * cosE * Edot

	w := degToRad(el.ArgPeriapsis)
	node := degToRad(el.AscendingNode)
	incl := degToRad(el.Inclination)

	return State{
		Pos: rotateToInertial(xOrb, yOrb, w, node, incl),
		Vel: rotateToInertial(vxOrb, vyOrb, w, node, incl),
	}
}

// CircularOrbit returns the state of a point on a circular prograde orbit
// of the given radius (km) around a body of the given mass, offset from the
// body's own state.
func CircularOrbit(radius, mass float64, center State) State {
	speed := math.Sqrt(G * mass / radius)
	return State{
		Pos: center.Pos.Add(Vec3{X: radius}),
		Vel: center.Vel.Add(Vec3{Y: speed}),
	}
}

// rotateToInertial rotates in-plane coordinates into the inertial frame:
// around z by the argument of periapsis, around x by the inclination, then
// around z by the longitude of the ascending node.
func rotateToInertial(x, y, w, node, incl float64) Vec3 {
	sinW, cosW := math.Sincos(w)
	sinN, cosN := math.Sincos(node)
	sinI, cosI := math.Sincos(incl)

	xRef := x*cosW - y*sinW
	yRef := x*sinW + y*cosW

	yInc := yRef * cosI
	zInc := yRef * sinI

	return Vec3{
		X: xRef*cosN - yInc*sinN,
		Y: xRef*sinN + yInc*cosN,
		Z: zInc,
	}
}
