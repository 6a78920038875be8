package random

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

const (
	// PasswordLen is the length of generated temporary passwords.
	PasswordLen = 16

	// byteRange is the number of distinct byte values.
	byteRange = 256
)

// Alphanumeric is the default character set.
const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrCharset is returned for character sets shorter than two or longer than 256 bytes.
var ErrCharset = errors.New("charset must hold between 2 and 256 characters")

// String returns a random string of length characters drawn from chars.
// Bytes that would bias the modulo are rejected and redrawn.
func String(length int, chars string) (string, error) {
	clen := len(chars)
	if clen < 2 || clen > byteRange {
		return "", ErrCharset
	}

	if length <= 0 {
		return "", nil
	}

	limit := byteRange - (byteRange % clen)
	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}

		for _, rb := range buf {
			if int(rb) >= limit {
				continue
			}

			out = append(out, chars[int(rb)%clen])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// TempPassword returns an alphanumeric password of PasswordLen characters
// holding at least one upper case letter, one lower case letter and one digit.
func TempPassword() (string, error) {
	for {
		pw, err := String(PasswordLen, Alphanumeric)
		if err != nil {
			return "", err
		}

		if strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz") &&
			strings.ContainsAny(pw, "0123456789") {
			return pw, nil
		}
	}
}
