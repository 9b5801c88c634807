package codec

import (
	"encoding/base64"
	"encoding/hex"
)

// EncodeCredential turns a plaintext password into the hex string the
// backend accepts in the password field: rotate13, then base64, then hex.
func EncodeCredential(secret string) string {
	return hexEncode(base64Encode(Rotate13(secret)))
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// hexEncode writes each byte as two lowercase hex digits.
func hexEncode(s string) string {
	return hex.EncodeToString([]byte(s))
}
