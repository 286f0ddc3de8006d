package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday.
var now = time.Date(2026, 10, 14, 10, 30, 15, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"in hours", "Call mom in 2 hours", now.Add(2 * time.Hour)},
		{"in h compact", "deploy in 3h", now.Add(3 * time.Hour)},
		{"in minutes", "Standup in 15 min", now.Add(15 * time.Minute)},
		{"in m compact", "tea in 5m", now.Add(5 * time.Minute)},
		{"hours beat weekday", "friday report in 1 hour", now.Add(time.Hour)},
		{"weekday default time", "Gym friday", time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)},
		{"weekday with time", "Gym Friday 18:00", time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)},
		{"same weekday rolls a week", "review wednesday", time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)},
		{"russian weekday", "встреча понедельник 11:15", time.Date(2026, 10, 19, 11, 15, 0, 0, time.UTC)},
		{"weekday beats tomorrow", "tomorrow or monday", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		{"tomorrow with time", "tomorrow 14:00", time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)},
		{"tomorrow default", "Pay rent tomorrow", time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)},
		{"russian tomorrow", "позвонить завтра", time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)},
		{"tomorrow ignores bad clock", "tomorrow 25:00", time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)},
		{"bare time later today", "Meeting 14:00", time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)},
		{"bare time rolls over", "Meeting 08:45", time.Date(2026, 10, 15, 8, 45, 0, 0, time.UTC)},
		{"single digit hour", "lunch 9:05", time.Date(2026, 10, 15, 9, 5, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.text, now)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_NoMatch(t *testing.T) {
	for _, text := range []string{"no time info here", "", "buy milk", "meeting 99:99"} {
		_, ok := Parse(text, now)
		assert.False(t, ok, text)
	}
}

func TestParse_ConvertsToUTC(t *testing.T) {
	local := now.In(time.FixedZone("UTC+3", 3*60*60))
	got, ok := Parse("tomorrow", local)
	require.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), got)
}

func TestSnoozeDelay(t *testing.T) {
	tests := []struct {
		token string
		want  time.Time
	}{
		{"1h", now.Add(time.Hour)},
		{" 3H ", now.Add(3 * time.Hour)},
		{"30m", now.Add(30 * time.Minute)},
		{"45min", now.Add(45 * time.Minute)},
		{"tomorrow", now.AddDate(0, 0, 1)},
		{"завтра", now.AddDate(0, 0, 1)},
		{"next week", now.AddDate(0, 0, 7)},
		{"garbage", now.Add(time.Hour)},
		{"", now.Add(time.Hour)},
		{"x2h", now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, SnoozeDelay(tt.token, now))
		})
	}
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"home", "work"}, Tags("fix sink #work #home #work"))
	assert.Equal(t, []string{"дом"}, Tags("убрать #дом"))
	assert.Empty(t, Tags("no tags"))
	assert.NotNil(t, Tags("no tags"))
}
