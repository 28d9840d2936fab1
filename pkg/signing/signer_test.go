package signing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShareLinkRoundTrip(t *testing.T) {
	signer := NewShareLinkSigner("secret", time.Minute)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	link, expiresAt, err := signer.Generate("tok-1", "sess-1", date)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	tokenID, sessionID, parsedDate, err := signer.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "tok-1", tokenID)
	require.Equal(t, "sess-1", sessionID)
	require.Equal(t, "2026-03-02", parsedDate.Format("2006-01-02"))
}

func TestShareLinkTamperedSignature(t *testing.T) {
	signer := NewShareLinkSigner("secret", time.Minute)
	link, _, err := signer.Generate("tok-1", "sess-1", time.Now())
	require.NoError(t, err)

	parts := strings.Split(link, ".")
	parts[1] = "sess-other"
	_, _, _, err = signer.Parse(strings.Join(parts, "."))
	require.Error(t, err)
}

func TestShareLinkExpired(t *testing.T) {
	signer := NewShareLinkSigner("secret", time.Minute)
	signer.ttl = -time.Minute
	link, _, err := signer.Generate("tok-1", "sess-1", time.Now())
	require.NoError(t, err)

	_, _, _, err = signer.Parse(link)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expired")
}

func TestShareLinkMissingSecret(t *testing.T) {
	signer := &ShareLinkSigner{}
	_, _, err := signer.Generate("tok-1", "sess-1", time.Now())
	require.Error(t, err)
}
