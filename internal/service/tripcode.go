package service

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	AnonymousName = "Anonymous"

	// Fixed, non-secret salt. Deters casual impersonation only; tripcodes are
	// not password storage.
	tripcodeSalt   = "L@1n#W1r3d"
	tripcodeLength = 10
)

// DeriveTripcode splits a "name#secret" input into a display name and a
// deterministic, non-reversible tripcode. A blank input yields the anonymous
// name with no tripcode; a missing or blank secret yields no tripcode.
func DeriveTripcode(input string) (name string, tripcode string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return AnonymousName, ""
	}

	namePart, secret, found := strings.Cut(input, "#")
	namePart = strings.TrimSpace(namePart)
	if namePart == "" {
		namePart = AnonymousName
	}
	if !found || strings.TrimSpace(secret) == "" {
		return namePart, ""
	}

	sum := sha256.Sum256([]byte(secret + tripcodeSalt))
	code := base64.RawURLEncoding.EncodeToString(sum[:])
	return namePart, code[:tripcodeLength]
}

// FormatDisplayName renders "name" or "name ◆tripcode".
func FormatDisplayName(name, tripcode string) string {
	if tripcode == "" {
		return name
	}
	return name + " ◆" + tripcode
}
