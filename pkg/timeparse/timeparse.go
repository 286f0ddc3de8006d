// Package timeparse resolves reminder times from free-form chat text.
//
// All functions take the reference time explicitly and work in UTC.
package timeparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Examples lists phrasings Parse understands. It is shown to users whose text did not resolve.
var Examples = []string{
	"Call mom in 2 hours",
	"Standup in 15 min",
	"Gym friday 18:00",
	"Pay rent tomorrow 10:30",
	"Meeting 14:00",
}

var (
	inHoursRe   = regexp.MustCompile(`in (\d+) ?(?:hours|hour|h)`)
	inMinutesRe = regexp.MustCompile(`in (\d+) ?(?:minutes|minute|min|m)`)
	clockRe     = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	tagRe       = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

	snoozeHoursRe   = regexp.MustCompile(`^(\d+)h`)
	snoozeMinutesRe = regexp.MustCompile(`^(\d+)m(?:in)?`)
)

type weekdayName struct {
	name string
	day  time.Weekday
}

// weekdays is checked in order; the first name found in the text wins.
var weekdays = []weekdayName{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
	{"понедельник", time.Monday},
	{"вторник", time.Tuesday},
	{"среда", time.Wednesday},
	{"четверг", time.Thursday},
	{"пятница", time.Friday},
	{"суббота", time.Saturday},
	{"воскресенье", time.Sunday},
}

var tomorrowWords = []string{"tomorrow", "завтра"}

const (
	defaultHour   = 9
	defaultMinute = 0
)

// Parse returns the due time described by text, or false when no rule matches.
// Rules are tried in order: "in N hours", "in N minutes", weekday, tomorrow, bare HH:MM.
func Parse(text string, now time.Time) (time.Time, bool) {
	now = now.UTC()
	lower := strings.ToLower(text)

	if n, ok := leadingCount(inHoursRe, lower); ok {
		return now.Add(time.Duration(n) * time.Hour), true
	}
	if n, ok := leadingCount(inMinutesRe, lower); ok {
		return now.Add(time.Duration(n) * time.Minute), true
	}

	for _, wd := range weekdays {
		if !strings.Contains(lower, wd.name) {
			continue
		}
		ahead := (int(wd.day) - int(now.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return atClock(now.AddDate(0, 0, ahead), text), true
	}

	for _, word := range tomorrowWords {
		if strings.Contains(lower, word) {
			return atClock(now.AddDate(0, 0, 1), text), true
		}
	}

	if hour, minute, ok := clock(text); ok {
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
		if target.Before(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target, true
	}

	return time.Time{}, false
}

// SnoozeDelay resolves a snooze token such as "30m", "2h", "tomorrow" or "week".
// Unknown tokens snooze for one hour.
func SnoozeDelay(token string, now time.Time) time.Time {
	now = now.UTC()
	token = strings.ToLower(strings.TrimSpace(token))

	if n, ok := leadingCount(snoozeHoursRe, token); ok {
		return now.Add(time.Duration(n) * time.Hour)
	}
	if n, ok := leadingCount(snoozeMinutesRe, token); ok {
		return now.Add(time.Duration(n) * time.Minute)
	}
	for _, word := range tomorrowWords {
		if strings.Contains(token, word) {
			return now.AddDate(0, 0, 1)
		}
	}
	if strings.Contains(token, "week") {
		return now.AddDate(0, 0, 7)
	}
	return now.Add(time.Hour)
}

// Tags extracts the unique #hashtags of text, without the '#', sorted.
func Tags(text string) []string {
	matches := tagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	sort.Strings(tags)
	return tags
}

// leadingCount returns the first capture group of re as a positive-or-zero count.
func leadingCount(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 100000 {
		return 0, false
	}
	return n, true
}

// clock finds the first HH:MM in text. Out-of-range values do not match.
func clock(text string) (int, int, bool) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// atClock moves day to the HH:MM given in text, or to 09:00.
func atClock(day time.Time, text string) time.Time {
	hour, minute, ok := clock(text)
	if !ok {
		hour, minute = defaultHour, defaultMinute
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}
