package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintVersion prefixes every digest so a change to the key layout never aliases old records.
const fingerprintVersion = "tsl/v1"

// FingerprintLength is the number of hex characters in a fingerprint.
const FingerprintLength = sha256.Size * 2

// Fingerprint is the content-derived cache key of a (kind, source, options) triple.
type Fingerprint string

// NewFingerprint derives the fingerprint of source compiled or checked with opts.
func NewFingerprint(kind TaskKind, source string, opts Options) Fingerprint {
	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(fingerprintVersion),
		[]byte(kind),
		opts.Canonical(),
		[]byte(source),
	} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}

// Valid reports whether f has the shape of a fingerprint.
func (f Fingerprint) Valid() bool {
	if len(f) != FingerprintLength {
		return false
	}
	for i := range len(f) {
		c := f[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
