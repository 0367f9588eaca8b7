package util

import "strings"

// SanitizePostgresText prepares catalog text for a TEXT column. Postgres
// rejects NUL bytes and invalid UTF-8, both of which turn up in CSV
// exports from spreadsheets; they are dropped rather than replaced.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, strings.ToValidUTF8(value, ""))
}
