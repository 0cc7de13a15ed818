package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/types"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	header := signBody("s3cret", body)

	assert.NoError(t, VerifySignature(types.SecretString("s3cret"), body, header))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	header := signBody("other", body)

	err := VerifySignature(types.SecretString("s3cret"), body, header)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthSignatureInvalid, appErr.Code)
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	header := signBody("s3cret", []byte(`{"action":"opened"}`))

	err := VerifySignature(types.SecretString("s3cret"), []byte(`{"action":"deleted"}`), header)
	assert.Error(t, err)
}

func TestVerifySignature_MissingHeader(t *testing.T) {
	err := VerifySignature(types.SecretString("s3cret"), []byte(`{}`), "")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthSignatureMissing, appErr.Code)
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	err := VerifySignature(types.SecretString("s3cret"), []byte(`{}`), "md5=deadbeef")
	assert.Error(t, err)
}

func TestVerifySignature_EmptySecretDisablesVerification(t *testing.T) {
	assert.NoError(t, VerifySignature(types.SecretString(""), []byte(`{}`), ""))
}
