package evaluation

import (
	"errors"
	"math"
)

// Sentinel errors surfaced by the aggregator. Callers translate these into
// user-facing responses; they are expected outcomes, not faults.
var (
	ErrInsufficientData = errors.New("insufficient data: zero effective days")
	ErrInvalidWeights   = errors.New("scoring weights must sum to 100")
)

// CoverageMethod selects how sparse enrollments are penalized.
type CoverageMethod string

const (
	CoverageSqrt   CoverageMethod = "sqrt"
	CoverageLinear CoverageMethod = "linear"
	CoverageLog    CoverageMethod = "log"
	CoverageNone   CoverageMethod = "none"
)

// Valid returns true when the method is supported.
func (m CoverageMethod) Valid() bool {
	switch m {
	case CoverageSqrt, CoverageLinear, CoverageLog, CoverageNone:
		return true
	default:
		return false
	}
}

// Config holds the tunable weights and constants for score aggregation.
// It is always passed explicitly; there is no ambient default.
type Config struct {
	WeightQuality     float64        `json:"weight_quality"`
	WeightAttendance  float64        `json:"weight_attendance"`
	WeightPunctuality float64        `json:"weight_punctuality"`
	LateDecayConstant float64        `json:"late_decay_constant"`
	LateMinimumCredit float64        `json:"late_minimum_credit"`
	LateNullEstimate  float64        `json:"late_null_estimate"`
	CoverageMethod    CoverageMethod `json:"coverage_method"`
	CoverageMinimum   float64        `json:"coverage_minimum"`
}

const weightSumTolerance = 1e-6

// ValidateWeights enforces that the three component weights sum to 100.
func (c Config) ValidateWeights() error {
	sum := c.WeightQuality + c.WeightAttendance + c.WeightPunctuality
	if math.Abs(sum-100) > weightSumTolerance {
		return ErrInvalidWeights
	}
	if c.WeightQuality < 0 || c.WeightAttendance < 0 || c.WeightPunctuality < 0 {
		return ErrInvalidWeights
	}
	return nil
}

// DefaultConfig mirrors the stock per-teacher scoring configuration.
func DefaultConfig() Config {
	return Config{
		WeightQuality:     50,
		WeightAttendance:  30,
		WeightPunctuality: 20,
		LateDecayConstant: 43.3,
		LateMinimumCredit: 0.1,
		LateNullEstimate:  15,
		CoverageMethod:    CoverageSqrt,
		CoverageMinimum:   0.5,
	}
}

// Observation is one attendance record reduced to what scoring needs.
// MinutesLate is nil when the historical record never captured it.
type Observation struct {
	Status      Status
	MinutesLate *int
}

// Summary is the aggregate result for one enrollment.
type Summary struct {
	OnTime          int     `json:"on_time"`
	Late            int     `json:"late"`
	Absent          int     `json:"absent"`
	Excused         int     `json:"excused"`
	NotEnrolled     int     `json:"not_enrolled"`
	EffectiveDays   int     `json:"effective_days"`
	AttendanceRate  float64 `json:"attendance_rate"`
	PunctualityRate float64 `json:"punctuality_rate"`
	QualityScore    float64 `json:"quality_score"`
	CoverageFactor  float64 `json:"coverage_factor"`
	WeightedScore   float64 `json:"weighted_score"`
}

// Score aggregates per-date observations into rates and a composite
// weighted score. totalPossibleDays is the session's full expected day
// count over the scored range and drives the coverage penalty.
func Score(observations []Observation, totalPossibleDays int, cfg Config) (*Summary, error) {
	if err := cfg.ValidateWeights(); err != nil {
		return nil, err
	}

	s := &Summary{}
	lateCredits := 0.0
	for _, obs := range observations {
		switch obs.Status {
		case StatusOnTime:
			s.OnTime++
		case StatusLate:
			s.Late++
			lateCredits += lateCredit(obs.MinutesLate, cfg)
		case StatusAbsent:
			s.Absent++
		case StatusExcused:
			s.Excused++
		case StatusNotEnrolled:
			s.NotEnrolled++
		}
	}

	s.EffectiveDays = len(observations) - s.NotEnrolled
	if s.EffectiveDays <= 0 {
		return nil, ErrInsufficientData
	}

	days := float64(s.EffectiveDays)
	s.AttendanceRate = float64(s.OnTime+s.Late+s.Excused) / days
	s.PunctualityRate = float64(s.OnTime) / days

	// Excused days count toward attendance but contribute zero quality.
	s.QualityScore = (float64(s.OnTime) + lateCredits) / days

	s.CoverageFactor = coverageFactor(s.EffectiveDays, totalPossibleDays, cfg)

	s.WeightedScore = s.CoverageFactor * (cfg.WeightQuality*s.QualityScore +
		cfg.WeightAttendance*s.AttendanceRate +
		cfg.WeightPunctuality*s.PunctualityRate) / 100

	return s, nil
}

// lateCredit decays a late arrival's quality contribution exponentially by
// minutes past grace. Records without a captured minutes-late value fall
// back to the configured estimate.
func lateCredit(minutesLate *int, cfg Config) float64 {
	minutes := cfg.LateNullEstimate
	if minutesLate != nil {
		minutes = float64(*minutesLate)
	}
	if minutes < 0 {
		minutes = 0
	}
	decay := cfg.LateDecayConstant
	if decay <= 0 {
		decay = 1
	}
	credit := math.Exp(-minutes / decay)
	if credit < cfg.LateMinimumCredit {
		return cfg.LateMinimumCredit
	}
	return credit
}

func coverageFactor(effectiveDays, totalPossibleDays int, cfg Config) float64 {
	if cfg.CoverageMethod == CoverageNone {
		return 1
	}
	if totalPossibleDays <= 0 || effectiveDays >= totalPossibleDays {
		return 1
	}

	ratio := float64(effectiveDays) / float64(totalPossibleDays)
	var factor float64
	switch cfg.CoverageMethod {
	case CoverageSqrt:
		factor = math.Sqrt(ratio)
	case CoverageLinear:
		factor = ratio
	case CoverageLog:
		factor = math.Log(1+float64(effectiveDays)) / math.Log(1+float64(totalPossibleDays))
	default:
		factor = math.Sqrt(ratio)
	}

	if factor < cfg.CoverageMinimum {
		return cfg.CoverageMinimum
	}
	return factor
}
