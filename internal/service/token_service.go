package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/signing"
)

type tokenRepository interface {
	Create(ctx context.Context, token *models.CheckInToken) error
	FindByValue(ctx context.Context, value string) (*models.CheckInToken, error)
	FindActive(ctx context.Context, sessionID string, date time.Time, now time.Time) (*models.CheckInToken, error)
	Invalidate(ctx context.Context, id string, closedAt time.Time) error
}

type tokenSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type tokenAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OpenWindowRequest opens a check-in window for one session date.
type OpenWindowRequest struct {
	SessionID string           `json:"session_id" validate:"required,uuid"`
	Date      time.Time        `json:"date" validate:"required"`
	Kind      models.TokenKind `json:"kind" validate:"required"`
	TTL       time.Duration    `json:"-"`

	ActorID   string `json:"-"`
	ActorRole models.UserRole
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// OpenWindowResponse returns the issued token and its share link.
type OpenWindowResponse struct {
	Token     models.CheckInToken `json:"token"`
	ShareLink string              `json:"share_link"`
}

// TokenService manages check-in window lifecycle for staff.
type TokenService struct {
	tokens    tokenRepository
	sessions  tokenSessionRepository
	audits    tokenAuditWriter
	signer    *signing.ShareLinkSigner
	validator *validator.Validate
	logger    *zap.Logger
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(tokens tokenRepository, sessions tokenSessionRepository, audits tokenAuditWriter, signer *signing.ShareLinkSigner, validate *validator.Validate, logger *zap.Logger, tokenTTL time.Duration) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &TokenService{
		tokens:    tokens,
		sessions:  sessions,
		audits:    audits,
		signer:    signer,
		validator: validate,
		logger:    logger,
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// OpenWindow issues a fresh check-in token for the session and date. Any
// still-active token for the same pair is invalidated first so at most one
// window is open per (session, date).
func (s *TokenService) OpenWindow(ctx context.Context, req OpenWindowRequest) (*OpenWindowResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be QR or PHOTO")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if req.ActorRole == models.RoleTeacher && session.OwnerID != req.ActorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another teacher")
	}
	if !session.OccursOn(req.Date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session does not meet on that date")
	}

	now := s.now().UTC()
	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.tokenTTL
	}

	if prev, err := s.tokens.FindActive(ctx, session.ID, req.Date, now); err == nil {
		if err := s.tokens.Invalidate(ctx, prev.ID, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close previous window")
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up open window")
	}

	token := &models.CheckInToken{
		ID:             uuid.NewString(),
		SessionID:      session.ID,
		AttendanceDate: req.Date,
		Kind:           req.Kind,
		Token:          uuid.NewString(),
		ExpiresAt:      now.Add(ttl),
		IsValid:        true,
		CreatedAt:      now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}

	var shareLink string
	if s.signer != nil {
		shareLink, _, err = s.signer.Generate(token.Token, token.SessionID, token.AttendanceDate)
		if err != nil {
			s.logger.Warn("failed to sign share link", zap.Error(err))
		}
	}

	s.audit(ctx, req.ActorID, models.AuditActionWindowOpen, token.ID, req.IP, req.UserAgent)
	s.logger.Info("check-in window opened",
		zap.String("session_id", session.ID),
		zap.String("token_id", token.ID),
		zap.Time("expires_at", token.ExpiresAt))

	return &OpenWindowResponse{Token: *token, ShareLink: shareLink}, nil
}

// CloseWindow invalidates an open token. Closing an already closed or expired
// window is a conflict, not an error the caller can retry around.
func (s *TokenService) CloseWindow(ctx context.Context, tokenValue, actorID, ip, userAgent string, actorRole models.UserRole) (*models.CheckInToken, error) {
	token, err := s.tokens.FindByValue(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}

	session, err := s.sessions.FindByID(ctx, token.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if actorRole == models.RoleTeacher && session.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another teacher")
	}

	now := s.now().UTC()
	switch token.State(now) {
	case models.TokenStateExpired:
		return nil, appErrors.Clone(appErrors.ErrConflict, "window already expired")
	case models.TokenStateInvalidated:
		return nil, appErrors.Clone(appErrors.ErrConflict, "window already closed")
	}

	if err := s.tokens.Invalidate(ctx, token.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close window")
	}
	token.IsValid = false
	token.ClosedAt = &now

	s.audit(ctx, actorID, models.AuditActionWindowClose, token.ID, ip, userAgent)
	return token, nil
}

// ActiveWindow returns the open token for a session date, if any.
func (s *TokenService) ActiveWindow(ctx context.Context, sessionID string, date time.Time) (*models.CheckInToken, error) {
	token, err := s.tokens.FindActive(ctx, sessionID, date, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no open check-in window")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up open window")
	}
	if !token.Matches(sessionID, date) {
		return nil, appErrors.Clone(appErrors.ErrSessionMismatch, "")
	}
	return token, nil
}

// ResolveShareLink verifies a signed share link and returns its token.
func (s *TokenService) ResolveShareLink(ctx context.Context, link string) (*models.CheckInToken, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "share links are not enabled")
	}
	tokenValue, sessionID, date, err := s.signer.Parse(link)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid share link")
	}
	token, err := s.tokens.FindByValue(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}
	if !token.Matches(sessionID, date) {
		return nil, appErrors.Clone(appErrors.ErrSessionMismatch, "")
	}
	return token, nil
}

func (s *TokenService) audit(ctx context.Context, actorID, action, resourceID, ip, userAgent string) {
	if s.audits == nil {
		return
	}
	actor := actorID
	rid := resourceID
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor,
		Action:     action,
		Resource:   "checkin_token",
		ResourceID: &rid,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
