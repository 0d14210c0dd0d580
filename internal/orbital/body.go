// Package orbital holds the static celestial model: body definitions,
// Keplerian elements, and the deterministic position/velocity math that
// turns (body, tick) into a state in the shared inertial frame.
package orbital

// Astronomical constants
const (
	AU              = 149597870.7 // Astronomical unit in kilometers
	SECONDS_PER_DAY = 86400.0     // Seconds in a day

	// Gravitational constant in km³/(kg·day²), derived from the SI value
	// so that all simulation units stay in km, kg and game days.
	G = 6.6743e-20 * SECONDS_PER_DAY * SECONDS_PER_DAY
)

// Tick is a discrete unit of simulation time. Tick-to-time conversion is
// the injective affine map tick × dt, with dt fixed per System.
type Tick uint64

// BodyID is a stable, unique identifier for a celestial body.
type BodyID string

// Elements are the classical Keplerian elements of a body's orbit around
// its parent, fixed for the session.
type Elements struct {
	SemiMajorAxis    float64 `json:"semiMajorAxis"`    // km
	Eccentricity     float64 `json:"eccentricity"`     // unitless
	Inclination      float64 `json:"inclination"`      // degrees
	ArgPeriapsis     float64 `json:"argPeriapsis"`     // degrees
	AscendingNode    float64 `json:"ascendingNode"`    // degrees
	MeanAnomalyEpoch float64 `json:"meanAnomalyEpoch"` // degrees at tick 0
	Period           float64 `json:"period"`           // game days per revolution
}

// Body is a celestial object on a fixed Keplerian orbit. Parent is a weak
// reference by id into the owning System; root bodies have an empty parent.
type Body struct {
	ID     BodyID   `json:"id"`
	Name   string   `json:"name"`
	Parent BodyID   `json:"parent,omitempty"`
	Mass   float64  `json:"mass"`   // kg
	Radius float64  `json:"radius"` // km
	Orbit  Elements `json:"orbit"`
}

// State is a position/velocity pair in the inertial frame.
type State struct {
	Pos Vec3 `json:"pos"`
	Vel Vec3 `json:"vel"`
}
