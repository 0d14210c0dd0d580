// Package universe provides the initial universe description: an embedded
// solar-system seed, a JSON file loader for custom universes, and a sqlite
// store for persisting them. The description is loaded once at startup and
// is immutable for the session.
package universe

import "orrery/internal/orbital"

// heliocentric builds a body from the JPL-style element set used for
// planets: mean longitude L, longitude of perihelion wbar and ascending
// node, all in degrees at the J2000 epoch. a in AU.
func heliocentric(id, name string, a, e, i, L, wbar, node, period, mass, radius float64) orbital.Body {
	return orbital.Body{
		ID:     orbital.BodyID(id),
		Name:   name,
		Parent: "sun",
		Mass:   mass,
		Radius: radius,
		Orbit: orbital.Elements{
			SemiMajorAxis:    a * orbital.AU,
			Eccentricity:     e,
			Inclination:      i,
			ArgPeriapsis:     wbar - node,
			AscendingNode:    node,
			MeanAnomalyEpoch: L - wbar,
			Period:           period,
		},
	}
}

// parentCentric builds a moon from parent-relative elements: semi-major
// axis in km, argument of perigee w and ascending node in degrees.
func parentCentric(id, name, parent string, a, e, i, L, w, node, period, mass, radius float64) orbital.Body {
	return orbital.Body{
		ID:     orbital.BodyID(id),
		Name:   name,
		Parent: orbital.BodyID(parent),
		Mass:   mass,
		Radius: radius,
		Orbit: orbital.Elements{
			SemiMajorAxis:    a,
			Eccentricity:     e,
			Inclination:      i,
			ArgPeriapsis:     w,
			AscendingNode:    node,
			MeanAnomalyEpoch: L - w - node,
			Period:           period,
		},
	}
}

// Seed returns the built-in solar system: the Sun, the eight planets and a
// handful of major moons, with J2000 orbital elements.
func Seed() []orbital.Body {
	return []orbital.Body{
		{ID: "sun", Name: "Sun", Mass: 1.989e30, Radius: 695700.0},

		heliocentric("mercury", "Mercury", 0.38709843, 0.20563661, 7.00559432, 252.25166724, 77.45771895, 48.33961819, 87.969, 3.301e23, 2439.7),
		heliocentric("venus", "Venus", 0.72333566, 0.00677672, 3.39467605, 181.97970850, 131.76755713, 76.67984255, 224.701, 4.867e24, 6051.8),
		heliocentric("earth", "Earth", 1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0, 365.256, 5.972e24, 6378.137),
		heliocentric("mars", "Mars", 1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891, 686.980, 6.417e23, 3396.2),
		heliocentric("jupiter", "Jupiter", 5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909, 4332.589, 1.898e27, 71492.0),
		heliocentric("saturn", "Saturn", 9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448, 10759.22, 5.683e26, 60268.0),
		heliocentric("uranus", "Uranus", 19.18916464, 0.04725744, 0.77263783, 313.23810451, 170.95427630, 74.01692503, 30688.5, 8.681e25, 25559.0),
		heliocentric("neptune", "Neptune", 30.06992276, 0.00859048, 1.77004347, -55.12002969, 44.96476227, 131.78422574, 60182.0, 1.024e26, 24764.0),

		parentCentric("moon", "Moon", "earth", 384399.0, 0.0549, 5.145, 375.7, 318.15, 125.08, 27.321661, 7.342e22, 1737.4),
		parentCentric("phobos", "Phobos", "mars", 9376.0, 0.0151, 1.093, 165.8, 157.1, 208.2, 0.31891, 1.08e16, 11.1),
		parentCentric("deimos", "Deimos", "mars", 23463.2, 0.00033, 0.93, 339.6, 260.7, 24.5, 1.263, 1.5e15, 6.2),
		parentCentric("io", "Io", "jupiter", 421700.0, 0.0041, 0.05, 128.1, 84.1, 43.9, 1.769138, 8.93e22, 1821.6),
		parentCentric("europa", "Europa", "jupiter", 671034.0, 0.0094, 0.471, 255.4, 88.9, 219.1, 3.551181, 4.8e22, 1560.8),
		parentCentric("ganymede", "Ganymede", "jupiter", 1070412.0, 0.0013, 0.204, 44.0, 192.4, 63.5, 7.154553, 1.48e23, 2631.2),
		parentCentric("callisto", "Callisto", "jupiter", 1882709.0, 0.0074, 0.205, 339.0, 52.6, 298.8, 16.689017, 1.08e23, 2410.3),
		parentCentric("titan", "Titan", "saturn", 1221870.0, 0.0288, 0.34854, 120.6, 185.7, 24.5, 15.945421, 1.345e23, 2574.7),
		parentCentric("triton", "Triton", "neptune", 354759.0, 0.000016, 156.885, 63.0, 66.1, 177.6, 5.876854, 2.14e22, 1353.4),
	}
}
