package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	sig := Sign("s3cret", body)

	assert.True(t, ValidSignature("s3cret", body, sig))
	assert.False(t, ValidSignature("other", body, sig))
	assert.False(t, ValidSignature("s3cret", []byte(`{}`), sig))
	assert.False(t, ValidSignature("s3cret", body, sig[len(signaturePrefix):]))
	assert.False(t, ValidSignature("s3cret", body, "sha256=zz"))
}
