package models

import "regexp"

var (
	dateRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// ValidDate проверяет форму даты YYYY-MM-DD. Календарь не проверяется:
// клиника работает с датами солнечной хиджры (например 1404-10-13).
func ValidDate(s string) bool {
	return dateRe.MatchString(s)
}

func ValidTime(s string) bool {
	return timeRe.MatchString(s)
}

// ValidTimeRange reports whether both bounds are HH:MM and end is after start.
// Zero-padded HH:MM strings order the same way as the times they denote.
func ValidTimeRange(start, end string) bool {
	return ValidTime(start) && ValidTime(end) && end > start
}
