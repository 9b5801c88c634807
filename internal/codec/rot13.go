// Package codec implements the request obfuscation pipelines the reseller
// backend expects: the credential encoding sent in place of a password and
// the time-derived freshness token. Both are reversible encodings, not
// cryptography.
package codec

// Rotate13 shifts every ASCII letter 13 places within its case. Other
// characters, including non-ASCII runes, pass through unchanged.
func Rotate13(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = 'a' + (c-'a'+13)%26
		case c >= 'A' && c <= 'Z':
			b[i] = 'A' + (c-'A'+13)%26
		}
	}
	return string(b)
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
