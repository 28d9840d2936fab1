package models

import (
	"time"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
)

// ScoringConfig persists per-owner aggregation weights. One row per owning
// teacher; readers fall back to the stock defaults when none exists.
type ScoringConfig struct {
	ID                string    `db:"id" json:"id"`
	OwnerID           string    `db:"owner_id" json:"owner_id"`
	WeightQuality     float64   `db:"weight_quality" json:"weight_quality"`
	WeightAttendance  float64   `db:"weight_attendance" json:"weight_attendance"`
	WeightPunctuality float64   `db:"weight_punctuality" json:"weight_punctuality"`
	LateDecayConstant float64   `db:"late_decay_constant" json:"late_decay_constant"`
	LateMinimumCredit float64   `db:"late_minimum_credit" json:"late_minimum_credit"`
	LateNullEstimate  float64   `db:"late_null_estimate" json:"late_null_estimate"`
	CoverageMethod    string    `db:"coverage_method" json:"coverage_method"`
	CoverageMinimum   float64   `db:"coverage_minimum" json:"coverage_minimum"`
	UpdatedBy         *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Evaluation converts the persisted row into the aggregator's config.
func (c ScoringConfig) Evaluation() evaluation.Config {
	return evaluation.Config{
		WeightQuality:     c.WeightQuality,
		WeightAttendance:  c.WeightAttendance,
		WeightPunctuality: c.WeightPunctuality,
		LateDecayConstant: c.LateDecayConstant,
		LateMinimumCredit: c.LateMinimumCredit,
		LateNullEstimate:  c.LateNullEstimate,
		CoverageMethod:    evaluation.CoverageMethod(c.CoverageMethod),
		CoverageMinimum:   c.CoverageMinimum,
	}
}

// DefaultScoringConfig builds a row from the stock aggregation defaults.
func DefaultScoringConfig(ownerID string) ScoringConfig {
	def := evaluation.DefaultConfig()
	return ScoringConfig{
		OwnerID:           ownerID,
		WeightQuality:     def.WeightQuality,
		WeightAttendance:  def.WeightAttendance,
		WeightPunctuality: def.WeightPunctuality,
		LateDecayConstant: def.LateDecayConstant,
		LateMinimumCredit: def.LateMinimumCredit,
		LateNullEstimate:  def.LateNullEstimate,
		CoverageMethod:    string(def.CoverageMethod),
		CoverageMinimum:   def.CoverageMinimum,
	}
}

// ScoreReport pairs the aggregate summary with its enrollment.
type ScoreReport struct {
	EnrollmentID string             `json:"enrollment_id"`
	SessionID    string             `json:"session_id"`
	Summary      evaluation.Summary `json:"summary"`
	ComputedAt   time.Time          `json:"computed_at"`
}
