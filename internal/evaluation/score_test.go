package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func repeat(status Status, n int) []Observation {
	obs := make([]Observation, n)
	for i := range obs {
		obs[i] = Observation{Status: status}
	}
	return obs
}

func TestScoreQualityDecay(t *testing.T) {
	// 20 effective days: 18 on time, 1 late by 10 minutes, 1 excused.
	obs := repeat(StatusOnTime, 18)
	obs = append(obs, Observation{Status: StatusLate, MinutesLate: intPtr(10)})
	obs = append(obs, Observation{Status: StatusExcused})

	cfg := DefaultConfig()
	cfg.CoverageMethod = CoverageNone

	summary, err := Score(obs, 20, cfg)
	require.NoError(t, err)

	assert.Equal(t, 20, summary.EffectiveDays)
	assert.InDelta(t, (18+math.Exp(-10/43.3))/20, summary.QualityScore, 1e-9)
	assert.InDelta(t, 0.9398, summary.QualityScore, 0.0005)
	assert.InDelta(t, 1.0, summary.AttendanceRate, 1e-9)
	assert.InDelta(t, 0.9, summary.PunctualityRate, 1e-9)
}

func TestScoreZeroEffectiveDays(t *testing.T) {
	_, err := Score(repeat(StatusNotEnrolled, 5), 5, DefaultConfig())
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = Score(nil, 0, DefaultConfig())
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestScoreRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeightQuality = 70

	_, err := Score(repeat(StatusOnTime, 1), 1, cfg)
	require.ErrorIs(t, err, ErrInvalidWeights)
}

func TestScoreAttendanceRateMonotone(t *testing.T) {
	cfg := DefaultConfig()

	prev := -1.0
	for present := 0; present <= 10; present++ {
		obs := repeat(StatusOnTime, present)
		obs = append(obs, repeat(StatusAbsent, 10-present)...)
		summary, err := Score(obs, 10, cfg)
		require.NoError(t, err)
		require.GreaterOrEqual(t, summary.AttendanceRate, prev)
		prev = summary.AttendanceRate
	}
}

func TestScoreBounded(t *testing.T) {
	cfg := DefaultConfig()

	cases := [][]Observation{
		repeat(StatusOnTime, 10),
		repeat(StatusAbsent, 10),
		append(repeat(StatusLate, 5), repeat(StatusExcused, 5)...),
	}
	for _, obs := range cases {
		summary, err := Score(obs, 10, cfg)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, summary.WeightedScore, 0.0)
		assert.LessOrEqual(t, summary.WeightedScore, 1.0)
	}
}

func TestScorePerfectAttendance(t *testing.T) {
	summary, err := Score(repeat(StatusOnTime, 10), 10, DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, summary.WeightedScore, 1e-9)
	assert.InDelta(t, 1.0, summary.CoverageFactor, 1e-9)
}

func TestScoreLateNullEstimate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoverageMethod = CoverageNone

	withNil, err := Score([]Observation{{Status: StatusLate}}, 1, cfg)
	require.NoError(t, err)
	withEstimate, err := Score([]Observation{{Status: StatusLate, MinutesLate: intPtr(int(cfg.LateNullEstimate))}}, 1, cfg)
	require.NoError(t, err)

	assert.InDelta(t, withEstimate.QualityScore, withNil.QualityScore, 1e-9)
}

func TestScoreLateMinimumCredit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoverageMethod = CoverageNone

	summary, err := Score([]Observation{{Status: StatusLate, MinutesLate: intPtr(600)}}, 1, cfg)
	require.NoError(t, err)
	assert.InDelta(t, cfg.LateMinimumCredit, summary.QualityScore, 1e-9)
}

func TestCoverageFactorMethods(t *testing.T) {
	base := DefaultConfig()
	base.CoverageMinimum = 0

	cfg := base
	cfg.CoverageMethod = CoverageSqrt
	summary, err := Score(repeat(StatusOnTime, 4), 16, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, summary.CoverageFactor, 1e-9)

	cfg.CoverageMethod = CoverageLinear
	summary, err = Score(repeat(StatusOnTime, 4), 16, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, summary.CoverageFactor, 1e-9)

	cfg.CoverageMethod = CoverageLog
	summary, err = Score(repeat(StatusOnTime, 4), 16, cfg)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(5)/math.Log(17), summary.CoverageFactor, 1e-9)

	cfg.CoverageMethod = CoverageNone
	summary, err = Score(repeat(StatusOnTime, 4), 16, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, summary.CoverageFactor, 1e-9)
}

func TestCoverageFactorFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoverageMethod = CoverageLinear
	cfg.CoverageMinimum = 0.5

	summary, err := Score(repeat(StatusOnTime, 1), 100, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, summary.CoverageFactor, 1e-9)
}

func TestValidateWeights(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ValidateWeights())

	cfg.WeightAttendance = -10
	cfg.WeightQuality = 90
	cfg.WeightPunctuality = 20
	require.ErrorIs(t, cfg.ValidateWeights(), ErrInvalidWeights)
}
