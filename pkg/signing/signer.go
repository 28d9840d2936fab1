package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ShareLinkSigner creates and validates signed check-in share links. The
// signed payload binds a token to its session and attendance date so a QR
// code cannot be replayed against another session.
type ShareLinkSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewShareLinkSigner constructs a signer with the provided secret and TTL.
func NewShareLinkSigner(secret string, ttl time.Duration) *ShareLinkSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ShareLinkSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a signed link token for the check-in token.
func (s *ShareLinkSigner) Generate(tokenID, sessionID string, date time.Time) (string, time.Time, error) {
	if tokenID == "" || sessionID == "" {
		return "", time.Time{}, fmt.Errorf("tokenID and sessionID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	day := date.Format("2006-01-02")
	payload := fmt.Sprintf("%s|%s|%s|%d", tokenID, sessionID, day, expiresAt.Unix())
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	link := strings.Join([]string{tokenID, sessionID, day, fmt.Sprintf("%d", expiresAt.Unix()), signature}, ".")
	return link, expiresAt, nil
}

// Parse validates a link token and returns the embedded metadata.
func (s *ShareLinkSigner) Parse(link string) (tokenID, sessionID string, date time.Time, err error) {
	parts := strings.Split(link, ".")
	if len(parts) != 5 {
		return "", "", time.Time{}, fmt.Errorf("invalid link format")
	}
	tokenID = parts[0]
	sessionID = parts[1]
	day := parts[2]
	ts := parts[3]
	signature := parts[4]

	date, err = time.Parse("2006-01-02", day)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid link date: %w", err)
	}

	expUnix, err := parseUnix(ts)
	if err != nil {
		return "", "", time.Time{}, err
	}

	payload := fmt.Sprintf("%s|%s|%s|%s", tokenID, sessionID, day, ts)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid link signature")
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return "", "", time.Time{}, fmt.Errorf("link expired")
	}
	return tokenID, sessionID, date, nil
}

func parseUnix(raw string) (int64, error) {
	var ts int64
	_, err := fmt.Sscanf(raw, "%d", &ts)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp")
	}
	return ts, nil
}
