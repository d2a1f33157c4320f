package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ParseFileDate extracts the YYMMDD token that starts a report file's base
// name (without extension) and returns it as an ISO date "20YY-MM-DD".
// The token must be six ASCII digits. Month and day are not range checked:
// a token such as "231301" yields "2023-13-01", and rows from that file
// simply fail timestamp synthesis.
func ParseFileDate(baseName string) (string, error) {
	token, _, _ := strings.Cut(baseName, "_")
	if len(token) != 6 {
		return "", fmt.Errorf("%w: %q", ErrMalformedDateToken, token)
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return "", fmt.Errorf("%w: %q", ErrMalformedDateToken, token)
		}
	}

	return "20" + token[0:2] + "-" + token[2:4] + "-" + token[4:6], nil
}

// FileDateFromPath applies ParseFileDate to a path's base name with its
// extension removed.
func FileDateFromPath(path string) (string, error) {
	base := filepath.Base(path)
	return ParseFileDate(strings.TrimSuffix(base, filepath.Ext(base)))
}

// FileDateToken formats a day as the YYMMDD token used in SPC file names.
func FileDateToken(day time.Time) string {
	return day.UTC().Format("060102")
}
