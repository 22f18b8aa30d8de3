package usersync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lalith-99/mehfil/internal/apperr"
)

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"

	secretPrefix = "whsec_"

	// SignatureTolerance bounds how far a delivery's timestamp may drift
	// from our clock.
	SignatureTolerance = 5 * time.Minute
)

// SignatureVerifier checks webhook deliveries signed in the Svix scheme:
// base64(HMAC-SHA256(key, "<id>.<timestamp>.<body>")), sent as one or more
// space-separated "v1,<sig>" entries.
type SignatureVerifier struct {
	key []byte
	now func() time.Time
}

// NewSignatureVerifier takes the signing secret as shown by the sender's
// dashboard, with or without the whsec_ prefix.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("webhook secret is empty")
	}
	return &SignatureVerifier{key: key, now: time.Now}, nil
}

// Verify returns an Unauthorized error unless one of the signatures matches
// and the timestamp is fresh.
func (v *SignatureVerifier) Verify(id, timestamp, signatures string, body []byte) error {
	if id == "" || timestamp == "" || signatures == "" {
		return apperr.New(apperr.CodeUnauthorized, "missing webhook signature headers")
	}

	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnauthorized, "invalid webhook timestamp", err)
	}
	drift := v.now().Sub(time.Unix(secs, 0))
	if drift > SignatureTolerance || drift < -SignatureTolerance {
		return apperr.New(apperr.CodeUnauthorized, "webhook timestamp outside tolerance")
	}

	expected := v.sign(id, timestamp, body)
	for _, entry := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return apperr.New(apperr.CodeUnauthorized, "invalid webhook signature")
}

// Sign produces the signature header value for a delivery. Senders and
// tests use it; Verify accepts its output.
func (v *SignatureVerifier) Sign(id, timestamp string, body []byte) string {
	return "v1," + base64.StdEncoding.EncodeToString(v.sign(id, timestamp, body))
}

func (v *SignatureVerifier) sign(id, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return mac.Sum(nil)
}
