package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baraatakala/training-center-sub003/internal/models"
)

// ScoringConfigRepository handles persistence for per-owner scoring weights.
type ScoringConfigRepository struct {
	db *sqlx.DB
}

// NewScoringConfigRepository constructs the repository.
func NewScoringConfigRepository(db *sqlx.DB) *ScoringConfigRepository {
	return &ScoringConfigRepository{db: db}
}

const scoringConfigColumns = `id, owner_id, weight_quality, weight_attendance, weight_punctuality, late_decay_constant, late_minimum_credit, late_null_estimate, coverage_method, coverage_minimum, updated_by, updated_at`

// FindByOwner loads the scoring configuration for one owning teacher.
func (r *ScoringConfigRepository) FindByOwner(ctx context.Context, ownerID string) (*models.ScoringConfig, error) {
	var config models.ScoringConfig
	query := fmt.Sprintf(`SELECT %s FROM scoring_configs WHERE owner_id = $1`, scoringConfigColumns)
	if err := r.db.GetContext(ctx, &config, query, ownerID); err != nil {
		return nil, err
	}
	return &config, nil
}

// Upsert inserts or replaces the owner's configuration.
func (r *ScoringConfigRepository) Upsert(ctx context.Context, config *models.ScoringConfig) (*models.ScoringConfig, error) {
	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	config.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO scoring_configs (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (owner_id)
DO UPDATE SET weight_quality = EXCLUDED.weight_quality, weight_attendance = EXCLUDED.weight_attendance,
    weight_punctuality = EXCLUDED.weight_punctuality, late_decay_constant = EXCLUDED.late_decay_constant,
    late_minimum_credit = EXCLUDED.late_minimum_credit, late_null_estimate = EXCLUDED.late_null_estimate,
    coverage_method = EXCLUDED.coverage_method, coverage_minimum = EXCLUDED.coverage_minimum,
    updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING %s`, scoringConfigColumns, scoringConfigColumns)
	var stored models.ScoringConfig
	if err := r.db.GetContext(ctx, &stored, query,
		config.ID, config.OwnerID, config.WeightQuality, config.WeightAttendance, config.WeightPunctuality,
		config.LateDecayConstant, config.LateMinimumCredit, config.LateNullEstimate,
		config.CoverageMethod, config.CoverageMinimum, config.UpdatedBy, config.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert scoring config: %w", err)
	}
	return &stored, nil
}
