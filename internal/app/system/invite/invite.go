// internal/app/system/invite/invite.go

// Package invite generates the short codes guardians type to link their
// account to a child record.
package invite

import (
	"context"
	"crypto/rand"
	"fmt"
)

// Codes are a "#" marker followed by four characters from this alphabet.
// Uniqueness is not cryptographic: callers retry against the store, and
// the unique index on children.invitation_code is the final authority.
const (
	Prefix     = "#"
	BodyLength = 4
	alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// maxAttempts bounds the retry loop; with 36^4 code space this only
// trips when the collection is nearly saturated.
const maxAttempts = 50

// Generate returns one candidate code. Pure generation, no store access.
func Generate() (string, error) {
	buf := make([]byte, BodyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, BodyLength)
	for i, b := range buf {
		code[i] = alphabet[int(b)%len(alphabet)]
	}
	return Prefix + string(code), nil
}

// ExistsFunc reports whether a code is already assigned to a child.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// GenerateUnique retries Generate until exists reports a free code.
func GenerateUnique(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := Generate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free invitation code after %d attempts", maxAttempts)
}
