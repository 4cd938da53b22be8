// Package shortcode generates and encodes the short codes used as redirect keys.
//
// Two strategies are provided: Random draws codes from a cryptographically
// secure source, and Encode deterministically maps a counter to base62. They
// are alternatives, not composed; the default creation path uses Random.
package shortcode

import (
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the 62-symbol code alphabet. The order matters: encoded
// counters of equal length sort in numeric order under it.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	// DefaultLength is the code length of the first generation attempt.
	DefaultLength = 6
	// MinCustomLength and MaxCustomLength bound caller-supplied codes.
	MinCustomLength = 3
	MaxCustomLength = 10
)

var (
	// ErrInvalidLength is returned when a custom code is shorter than
	// MinCustomLength or longer than MaxCustomLength.
	ErrInvalidLength = errors.New("code length out of range")
	// ErrInvalidCharacter is returned when a code contains a symbol outside Alphabet.
	ErrInvalidCharacter = errors.New("code contains non-alphanumeric character")
	// ErrReservedCode is returned when a custom code collides with a routing keyword.
	ErrReservedCode = errors.New("code is reserved")
)

// reservedCodes are path segments the HTTP layer owns; handing them out as
// short codes would shadow those routes.
var reservedCodes = map[string]struct{}{
	"api":     {},
	"admin":   {},
	"www":     {},
	"app":     {},
	"health":  {},
	"metrics": {},
	"docs":    {},
}

// Random returns a code of the given length drawn uniformly from Alphabet
// using a cryptographically secure source. Codes double as access tokens for
// unlisted links, so predictability must be infeasible.
func Random(length int) (string, error) {
	const op = "shortcode.Random"

	code, err := gonanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate code: %w", op, err)
	}

	return code, nil
}

// Encode maps a non-negative integer to its base62 representation, most
// significant digit first. Zero encodes to "0", not the empty string.
func Encode(n uint64) string {
	if n == 0 {
		return string(Alphabet[0])
	}

	buf := make([]byte, 0, 11) // 62^11 > MaxUint64
	for n > 0 {
		buf = append(buf, Alphabet[n%62])
		n /= 62
	}

	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf)
}

// Decode is the inverse of Encode.
func Decode(code string) (uint64, error) {
	const op = "shortcode.Decode"

	var n uint64
	for i := 0; i < len(code); i++ {
		v := strings.IndexByte(Alphabet, code[i])
		if v < 0 {
			return 0, fmt.Errorf("%s: %w", op, ErrInvalidCharacter)
		}
		n = n*62 + uint64(v)
	}

	return n, nil
}

// IsAlphanumeric reports whether every symbol of code belongs to Alphabet.
func IsAlphanumeric(code string) bool {
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return code != ""
}

// ValidateCustom checks a caller-supplied code against the custom-code rules:
// length bounds, the alphanumeric alphabet, and the reserved keyword list.
func ValidateCustom(code string) error {
	const op = "shortcode.ValidateCustom"

	if len(code) < MinCustomLength || len(code) > MaxCustomLength {
		return fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	if !IsAlphanumeric(code) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCharacter)
	}

	if _, ok := reservedCodes[strings.ToLower(code)]; ok {
		return fmt.Errorf("%s: %w", op, ErrReservedCode)
	}

	return nil
}
