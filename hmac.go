package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACDigest returns hex(HMAC-SHA256(key, value)).
func HMACDigest(key, value string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

func digestEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
