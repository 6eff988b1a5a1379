// Package ident normalizes identifiers that reach the service in more than one
// representation. Roll numbers are entered as text on rosters but arrive as JSON
// numbers in absence lists; subject references in timetables may be numeric.
// Everything is reduced to one canonical string when it is decoded or stored.
package ident

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
)

// NormalizeRoll trims surrounding whitespace. Case is preserved.
func NormalizeRoll(s string) string {
	return strings.TrimSpace(s)
}

// RollKey is the comparison key for a roll number. Purely numeric rolls compare
// by value, so "007" and "7" are the same student.
func RollKey(s string) string {
	s = NormalizeRoll(s)
	if !isDigits(s) {
		return s
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// SameRoll reports whether a and b identify the same student.
func SameRoll(a, b string) bool {
	ka, kb := RollKey(a), RollKey(b)
	return ka != "" && ka == kb
}

// DedupeRolls normalizes rolls, drops empty entries and keeps the first
// occurrence of each RollKey, preserving order.
func DedupeRolls(rolls []string) []string {
	seen := make(map[string]struct{}, len(rolls))
	out := make([]string, 0, len(rolls))
	for _, r := range rolls {
		r = NormalizeRoll(r)
		if r == "" {
			continue
		}
		k := RollKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Flex is a string identifier that decodes from either a JSON string or a JSON
// number. It always encodes as a string.
type Flex string

var errFlexType = errors.New("ident: identifier must be a string or a number")

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Flex(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errFlexType
	}
	*f = Flex(canonicalNumber(n))
	return nil
}

// canonicalNumber writes integral numbers in plain integer form, so 2, 2.0
// and 2e0 decode alike. Other numbers keep their text.
func canonicalNumber(n json.Number) string {
	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() {
		return n.String()
	}
	return r.Num().String()
}

// MarshalJSON implements json.Marshaler.
func (f Flex) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

func (f Flex) String() string { return string(f) }

// Strings converts a Flex slice to plain strings.
func Strings(in []Flex) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
