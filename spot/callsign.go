package spot

import (
	"regexp"
	"strings"
)

const (
	callPrefixLen = 2
	callSuffixLen = 3
	// SyntheticCallLen is the length of a generated call (LLDLLL).
	SyntheticCallLen = callPrefixLen + 1 + callSuffixLen
)

var (
	syntheticCallPattern = regexp.MustCompile(`^[A-Z]{2}[0-9][A-Z]{3}$`)
	// operatorCallPattern accepts ordinary amateur calls, optionally portable.
	operatorCallPattern = regexp.MustCompile(`^[A-Z0-9]{1,3}[0-9][A-Z0-9]{0,4}(?:/[A-Z0-9]+)?$`)
)

// RandomCall builds a synthetic callsign: two letters, one digit, three
// letters. Each character is an independent uniform draw.
func RandomCall(r Rand) string {
	var b [SyntheticCallLen]byte
	for i := 0; i < callPrefixLen; i++ {
		b[i] = byte('A' + r.IntN(26))
	}
	b[callPrefixLen] = byte('0' + r.IntN(10))
	for i := callPrefixLen + 1; i < SyntheticCallLen; i++ {
		b[i] = byte('A' + r.IntN(26))
	}
	return string(b[:])
}

// IsSyntheticCall reports whether call has the generated LLDLLL shape.
func IsSyntheticCall(call string) bool {
	return syntheticCallPattern.MatchString(call)
}

// NormalizeCallsign upper-cases and trims a callsign.
func NormalizeCallsign(call string) string {
	return strings.ToUpper(strings.TrimSpace(call))
}

// IsValidOperatorCall reports whether call looks like a real amateur callsign
// suitable for own-call mode.
func IsValidOperatorCall(call string) bool {
	return operatorCallPattern.MatchString(NormalizeCallsign(call))
}
