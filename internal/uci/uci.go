// Package uci generates and verifies Unique Certificate Identifiers:
// URN:UCI:01:NL:<26 chars of unpadded base32>#<Luhn mod-N check character>.
package uci

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"regexp"
	"strings"
)

const prefix = "URN:UCI:01:NL:"

// alphabet is the UCI character set the Luhn mod-N checksum runs over.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789/#:"

var pattern = regexp.MustCompile(`^URN:UCI:01:NL:[A-Z0-9/:]+#[A-Z0-9/:]$`)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// New returns a fresh identifier from 16 bytes of CSPRNG entropy.
func New() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("uci entropy: %w", err)
	}
	payload := prefix + encoding.EncodeToString(buf)
	check, err := checksum(payload)
	if err != nil {
		return "", err
	}
	return payload + "#" + string(check), nil
}

// Verify reports whether s is a well-formed identifier with a valid checksum.
func Verify(s string) bool {
	if !pattern.MatchString(s) {
		return false
	}
	payload, check, ok := strings.Cut(s, "#")
	if !ok || len(check) != 1 {
		return false
	}
	want, err := checksum(payload)
	if err != nil {
		return false
	}
	return check[0] == want
}

// checksum computes the Luhn mod-N check character over the payload.
func checksum(payload string) (byte, error) {
	n := len(alphabet)
	factor := 2
	sum := 0
	for i := len(payload) - 1; i >= 0; i-- {
		code := strings.IndexByte(alphabet, payload[i])
		if code < 0 {
			return 0, fmt.Errorf("character %q outside uci alphabet", payload[i])
		}
		addend := factor * code
		if factor == 2 {
			factor = 1
		} else {
			factor = 2
		}
		addend = addend/n + addend%n
		sum += addend
	}
	remainder := sum % n
	return alphabet[(n-remainder)%n], nil
}
