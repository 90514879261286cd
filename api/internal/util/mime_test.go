package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0xFB}
	std := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		in       string
		wantMIME string
	}{
		{"plain", std, ""},
		{"padded with whitespace", "  " + std + "\n", ""},
		{"data url", "data:image/png;base64," + std, "image/png"},
		{"url safe", base64.URLEncoding.EncodeToString(raw), ""},
		{"unpadded", base64.RawStdEncoding.EncodeToString(raw), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, mime, err := DecodeBase64MaybeDataURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, raw, b)
			assert.Equal(t, tt.wantMIME, mime)
		})
	}

	_, _, err := DecodeBase64MaybeDataURL("%%% not base64 %%%")
	assert.Error(t, err)
}

func TestPickMIME(t *testing.T) {
	assert.Equal(t, "image/webp", PickMIME("image/webp", "image/png", pngMagic))
	assert.Equal(t, "image/png", PickMIME("", "image/png", nil))
	assert.Equal(t, "image/png", PickMIME("", "", pngMagic))
	assert.Equal(t, "image/jpeg", PickMIME("", "", []byte("hello")))
	assert.Equal(t, "image/jpeg", PickMIME("", "", nil))
}
