package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/signing"
)

type stubTokenRepo struct {
	created     *models.CheckInToken
	byValue     *models.CheckInToken
	byValueErr  error
	active      *models.CheckInToken
	activeErr   error
	invalidated []string
}

func (s *stubTokenRepo) Create(_ context.Context, token *models.CheckInToken) error {
	s.created = token
	return nil
}

func (s *stubTokenRepo) FindByValue(_ context.Context, _ string) (*models.CheckInToken, error) {
	if s.byValueErr != nil {
		return nil, s.byValueErr
	}
	return s.byValue, nil
}

func (s *stubTokenRepo) FindActive(_ context.Context, _ string, _ time.Time, _ time.Time) (*models.CheckInToken, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	return s.active, nil
}

func (s *stubTokenRepo) Invalidate(_ context.Context, id string, _ time.Time) error {
	s.invalidated = append(s.invalidated, id)
	return nil
}

type tokenFixture struct {
	tokens *stubTokenRepo
	audits *stubAuditWriter
	svc    *TokenService
}

func newTokenFixture(t *testing.T, now time.Time) *tokenFixture {
	t.Helper()

	session := &models.Session{
		ID:        testSessionID,
		OwnerID:   "teacher-1",
		Weekdays:  "1,3",
		StartTime: "09:00",
		EndTime:   "12:00",
	}
	f := &tokenFixture{
		tokens: &stubTokenRepo{activeErr: sql.ErrNoRows},
		audits: &stubAuditWriter{},
	}
	signer := signing.NewShareLinkSigner("test-secret", time.Hour)
	f.svc = NewTokenService(f.tokens, &stubSessionLookup{session: session}, f.audits, signer, nil, nil, 30*time.Minute)
	f.svc.now = func() time.Time { return now }
	return f
}

func TestOpenWindowIssuesToken(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 45, 0, 0, time.UTC)
	f := newTokenFixture(t, now)

	resp, err := f.svc.OpenWindow(context.Background(), OpenWindowRequest{
		SessionID: testSessionID,
		Date:      markDate,
		Kind:      models.TokenKindQR,
		ActorID:   "teacher-1",
		ActorRole: models.RoleTeacher,
	})
	require.NoError(t, err)

	require.NotNil(t, f.tokens.created)
	assert.True(t, resp.Token.IsValid)
	assert.Equal(t, models.TokenStateActive, resp.Token.State(now))
	assert.Equal(t, now.Add(30*time.Minute), resp.Token.ExpiresAt)
	assert.NotEmpty(t, resp.ShareLink)
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, models.AuditActionWindowOpen, f.audits.entries[0].Action)
}

func TestOpenWindowReplacesActiveToken(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 45, 0, 0, time.UTC)
	f := newTokenFixture(t, now)
	f.tokens.activeErr = nil
	f.tokens.active = &models.CheckInToken{ID: "prev-token", SessionID: testSessionID}

	_, err := f.svc.OpenWindow(context.Background(), OpenWindowRequest{
		SessionID: testSessionID,
		Date:      markDate,
		Kind:      models.TokenKindPhoto,
		ActorID:   "teacher-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"prev-token"}, f.tokens.invalidated)
}

func TestOpenWindowRejectsForeignSession(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 45, 0, 0, time.UTC)
	f := newTokenFixture(t, now)

	_, err := f.svc.OpenWindow(context.Background(), OpenWindowRequest{
		SessionID: testSessionID,
		Date:      markDate,
		Kind:      models.TokenKindQR,
		ActorID:   "teacher-2",
		ActorRole: models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestOpenWindowRejectsNonMeetingDate(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 45, 0, 0, time.UTC)
	f := newTokenFixture(t, now)

	_, err := f.svc.OpenWindow(context.Background(), OpenWindowRequest{
		SessionID: testSessionID,
		Date:      markDate.AddDate(0, 0, 1),
		Kind:      models.TokenKindQR,
		ActorID:   "teacher-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCloseWindow(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	f := newTokenFixture(t, now)
	f.tokens.byValue = &models.CheckInToken{
		ID:        "token-1",
		SessionID: testSessionID,
		ExpiresAt: now.Add(10 * time.Minute),
		IsValid:   true,
	}

	closed, err := f.svc.CloseWindow(context.Background(), "qr-value", "teacher-1", "", "", models.RoleTeacher)
	require.NoError(t, err)

	assert.False(t, closed.IsValid)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, []string{"token-1"}, f.tokens.invalidated)
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, models.AuditActionWindowClose, f.audits.entries[0].Action)
}

func TestCloseWindowAlreadyClosed(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	f := newTokenFixture(t, now)
	f.tokens.byValue = &models.CheckInToken{
		ID:        "token-1",
		SessionID: testSessionID,
		ExpiresAt: now.Add(10 * time.Minute),
		IsValid:   false,
	}

	_, err := f.svc.CloseWindow(context.Background(), "qr-value", "teacher-1", "", "", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.tokens.invalidated)
}

func TestResolveShareLinkRoundTrip(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 45, 0, 0, time.UTC)
	f := newTokenFixture(t, now)

	resp, err := f.svc.OpenWindow(context.Background(), OpenWindowRequest{
		SessionID: testSessionID,
		Date:      markDate,
		Kind:      models.TokenKindQR,
		ActorID:   "teacher-1",
	})
	require.NoError(t, err)

	f.tokens.byValue = f.tokens.created
	token, err := f.svc.ResolveShareLink(context.Background(), resp.ShareLink)
	require.NoError(t, err)
	assert.Equal(t, f.tokens.created.ID, token.ID)
}

func TestResolveShareLinkTampered(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 45, 0, 0, time.UTC)
	f := newTokenFixture(t, now)

	resp, err := f.svc.OpenWindow(context.Background(), OpenWindowRequest{
		SessionID: testSessionID,
		Date:      markDate,
		Kind:      models.TokenKindQR,
		ActorID:   "teacher-1",
	})
	require.NoError(t, err)

	_, err = f.svc.ResolveShareLink(context.Background(), resp.ShareLink+"x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
