package domain

import (
	"strings"
	"time"
)

// TimestampLayout is the format of utc_timestamp values.
const TimestampLayout = "2006-01-02T15:04:05Z"

// SynthesizeTimestamp combines an ISO date with an HHMM military time token
// (e.g. "1510" → 15:10, "945" → 09:45) into a UTC instant. The second return
// value is false when the token is empty, non-numeric, longer than four
// digits, or names an impossible hour or minute.
func SynthesizeTimestamp(date, militaryTime string) (string, bool) {
	hhmm := strings.TrimSpace(militaryTime)
	if hhmm == "" || len(hhmm) > 4 {
		return "", false
	}
	for i := 0; i < len(hhmm); i++ {
		if hhmm[i] < '0' || hhmm[i] > '9' {
			return "", false
		}
	}
	hhmm = strings.Repeat("0", 4-len(hhmm)) + hhmm

	t, err := time.ParseInLocation("2006-01-021504", date+hhmm, time.UTC)
	if err != nil {
		return "", false
	}
	return t.Format(TimestampLayout), true
}
