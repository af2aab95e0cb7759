package core

import (
	"strings"
	"time"
)

// AgeGroupUnknown marks users whose age could not be determined. They are
// excluded from cohort aggregation.
const AgeGroupUnknown = "unknown"

// AgeAt computes the whole years elapsed between a "YYYY-MM-DD" birth date and
// today. The year difference is reduced by one when the birthday has not yet
// been reached this year. Returns -1 when the input is empty or unparseable.
// A birth date in the future yields a negative age.
func AgeAt(birthDate string, today time.Time) int {
	s := strings.TrimSpace(birthDate)
	if s == "" {
		return -1
	}
	born, err := time.Parse("2006-01-02", s)
	if err != nil {
		return -1
	}
	years := today.Year() - born.Year()
	if today.Month() < born.Month() ||
		(today.Month() == born.Month() && today.Day() < born.Day()) {
		years--
	}
	return years
}

// AgeGroup maps an age to a 10-year-wide bucket: "<20" is "10s", 20-29 is
// "20s" and so on up to "60s"; 70 and above is "70+". Negative ages map to
// the unknown sentinel.
func AgeGroup(age int) string {
	switch {
	case age < 0:
		return AgeGroupUnknown
	case age < 20:
		return "10s"
	case age < 30:
		return "20s"
	case age < 40:
		return "30s"
	case age < 50:
		return "40s"
	case age < 60:
		return "50s"
	case age < 70:
		return "60s"
	default:
		return "70+"
	}
}
