package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classWindow(grace int) ClassWindow {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return ClassWindow{
		Start:        start,
		End:          start.Add(3 * time.Hour),
		GraceMinutes: grace,
	}
}

func TestClassifyWithinGraceIsOnTime(t *testing.T) {
	window := classWindow(15)

	result := Classify(window, window.Start.Add(10*time.Minute))
	assert.Equal(t, StatusOnTime, result.Status)
	assert.Zero(t, result.MinutesLate)
	assert.Equal(t, SeverityNone, result.Severity)

	// Boundary: exactly at grace end still counts as on time.
	result = Classify(window, window.Start.Add(15*time.Minute))
	assert.Equal(t, StatusOnTime, result.Status)
}

func TestClassifyPastGraceIsLate(t *testing.T) {
	window := classWindow(15)

	result := Classify(window, window.Start.Add(20*time.Minute))
	require.Equal(t, StatusLate, result.Status)
	assert.Equal(t, 5, result.MinutesLate)
	assert.Equal(t, SeverityModerate, result.Severity)
}

func TestClassifyAfterSessionEndIsLateMissed(t *testing.T) {
	window := classWindow(15)

	// 12:05 check-in for a 09:00-12:00 session.
	result := Classify(window, window.End.Add(5*time.Minute))
	require.Equal(t, StatusLate, result.Status)
	assert.Equal(t, SeverityMissed, result.Severity)
	assert.Equal(t, 170, result.MinutesLate)
}

func TestClassifyZeroGrace(t *testing.T) {
	window := classWindow(0)

	assert.Equal(t, StatusOnTime, Classify(window, window.Start).Status)
	assert.Equal(t, StatusLate, Classify(window, window.Start.Add(time.Second)).Status)
}

func TestClassifyClampsOutOfRangeGrace(t *testing.T) {
	window := classWindow(240)

	// Grace is clamped to 60 minutes, so 90 past start is 30 late.
	result := Classify(window, window.Start.Add(90*time.Minute))
	require.Equal(t, StatusLate, result.Status)
	assert.Equal(t, 30, result.MinutesLate)

	window = classWindow(-10)
	result = Classify(window, window.Start.Add(time.Minute))
	assert.Equal(t, StatusLate, result.Status)
}

func TestClampGrace(t *testing.T) {
	assert.Equal(t, 0, ClampGrace(-5))
	assert.Equal(t, 30, ClampGrace(30))
	assert.Equal(t, 60, ClampGrace(120))
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusOnTime.Valid())
	assert.False(t, Status("UNKNOWN").Valid())

	assert.True(t, StatusExcused.Counted())
	assert.False(t, StatusAbsent.Counted())
	assert.False(t, StatusNotEnrolled.Counted())
}
