package universe

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"orrery/internal/orbital"
)

// BodyRecord is the gorm model for a persisted body definition.
type BodyRecord struct {
	ID               string `gorm:"primaryKey"`
	Name             string
	Parent           string
	Mass             float64
	Radius           float64
	SemiMajorAxis    float64
	Eccentricity     float64
	Inclination      float64
	ArgPeriapsis     float64
	AscendingNode    float64
	MeanAnomalyEpoch float64
	Period           float64
}

// TableName overrides the default gorm pluralization.
func (BodyRecord) TableName() string { return "bodies" }

// Store persists universe descriptions in a local sqlite database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(&gormLogWriter{log: log}, logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open universe db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&BodyRecord{}); err != nil {
		return nil, fmt.Errorf("migrate universe db: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// gormLogWriter adapts zerolog to gorm's logger.Writer interface.
type gormLogWriter struct {
	log zerolog.Logger
}

func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Msgf(format, args...)
}

// Save replaces the stored universe with the given bodies in one
// transaction.
func (s *Store) Save(bodies []orbital.Body) error {
	records := make([]BodyRecord, 0, len(bodies))
	for _, b := range bodies {
		records = append(records, BodyRecord{
			ID:               string(b.ID),
			Name:             b.Name,
			Parent:           string(b.Parent),
			Mass:             b.Mass,
			Radius:           b.Radius,
			SemiMajorAxis:    b.Orbit.SemiMajorAxis,
			Eccentricity:     b.Orbit.Eccentricity,
			Inclination:      b.Orbit.Inclination,
			ArgPeriapsis:     b.Orbit.ArgPeriapsis,
			AscendingNode:    b.Orbit.AscendingNode,
			MeanAnomalyEpoch: b.Orbit.MeanAnomalyEpoch,
			Period:           b.Orbit.Period,
		})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM bodies").Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

// Load returns the stored universe description in primary-key order.
func (s *Store) Load() ([]orbital.Body, error) {
	var records []BodyRecord
	if err := s.db.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	bodies := make([]orbital.Body, 0, len(records))
	for _, r := range records {
		bodies = append(bodies, orbital.Body{
			ID:     orbital.BodyID(r.ID),
			Name:   r.Name,
			Parent: orbital.BodyID(r.Parent),
			Mass:   r.Mass,
			Radius: r.Radius,
			Orbit: orbital.Elements{
				SemiMajorAxis:    r.SemiMajorAxis,
				Eccentricity:     r.Eccentricity,
				Inclination:      r.Inclination,
				ArgPeriapsis:     r.ArgPeriapsis,
				AscendingNode:    r.AscendingNode,
				MeanAnomalyEpoch: r.MeanAnomalyEpoch,
				Period:           r.Period,
			},
		})
	}
	return bodies, nil
}

// Count returns the number of stored bodies.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&BodyRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
