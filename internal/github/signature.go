package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"modrelay/internal/types"
)

const signaturePrefix = "sha256="

// VerifySignature checks an inbound webhook body against the
// X-Hub-Signature-256 header value using HMAC-SHA256 with the shared secret.
// An empty secret disables verification (local development). Comparison is
// constant time.
func VerifySignature(secret types.SecretString, body []byte, header string) error {
	if secret.Unmask() == "" {
		return nil
	}

	if header == "" {
		return types.NewAppError(types.ErrCodeAuthSignatureMissing,
			"missing X-Hub-Signature-256 header", nil)
	}

	provided, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid,
			"malformed signature header", nil)
	}

	mac := hmac.New(sha256.New, []byte(secret.Unmask()))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid,
			"signature mismatch", nil)
	}
	return nil
}
