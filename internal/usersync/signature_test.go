package usersync

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/stretchr/testify/require"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

func newTestVerifier(t *testing.T, now time.Time) *SignatureVerifier {
	t.Helper()
	v, err := NewSignatureVerifier(testSecret)
	require.NoError(t, err)
	v.now = func() time.Time { return now }
	return v
}

func TestSignatureVerifier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)

	t.Run("should accept its own signature", func(t *testing.T) {
		v := newTestVerifier(t, now)
		require.NoError(t, v.Verify("msg_1", ts, v.Sign("msg_1", ts, body), body))
	})

	t.Run("should accept when any listed signature matches", func(t *testing.T) {
		v := newTestVerifier(t, now)
		header := "v1,Zm9vYmFy v2,ignored " + v.Sign("msg_1", ts, body)
		require.NoError(t, v.Verify("msg_1", ts, header, body))
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		v := newTestVerifier(t, now)
		sig := v.Sign("msg_1", ts, body)
		err := v.Verify("msg_1", ts, sig, []byte(`{"type":"user.deleted","data":{"id":"user_1"}}`))
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("should reject a stale timestamp", func(t *testing.T) {
		v := newTestVerifier(t, now.Add(SignatureTolerance+time.Second))
		err := v.Verify("msg_1", ts, v.Sign("msg_1", ts, body), body)
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("should reject missing headers", func(t *testing.T) {
		v := newTestVerifier(t, now)
		require.ErrorIs(t, v.Verify("", ts, "v1,abc", body), apperr.ErrUnauthorized)
	})

	t.Run("should reject a different key", func(t *testing.T) {
		signer, err := NewSignatureVerifier(base64.StdEncoding.EncodeToString([]byte("other")))
		require.NoError(t, err)
		v := newTestVerifier(t, now)
		require.ErrorIs(t, v.Verify("msg_1", ts, signer.Sign("msg_1", ts, body), body), apperr.ErrUnauthorized)
	})
}

func TestNewSignatureVerifier_BadSecret(t *testing.T) {
	_, err := NewSignatureVerifier("whsec_not base64!")
	require.Error(t, err)
}
