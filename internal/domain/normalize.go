package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used before a name is interpolated into an email greeting.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail returns the comparison form of an email address.
// Addresses are compared case-insensitively after trimming.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
