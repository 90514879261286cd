// Package util holds small helpers for request payloads.
package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// DecodeBase64MaybeDataURL decodes base64. For a data: URI it also returns the
// MIME type from the prefix.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, hintMIME, nil
	}
	if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	}
	if b3, err3 := base64.RawStdEncoding.DecodeString(s); err3 == nil {
		return b3, hintMIME, nil
	}
	return nil, "", err
}

// PickMIME prefers the explicit type, then the data: URI hint, then sniffs
// the bytes. Unknown content falls back to JPEG, which is what clients send.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	return "image/jpeg"
}
