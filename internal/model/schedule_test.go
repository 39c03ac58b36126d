package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	d, err := ParseClock("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14*time.Hour+30*time.Minute, d)

	d, err = ParseClock("09:00:15")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+15*time.Second, d)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestOrderWhen(t *testing.T) {
	o := Order{ID: 1, Date: "2025-12-22", Time: "14:30"}
	day, clock, ok, err := o.When()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Monday, day)
	assert.Equal(t, 14*time.Hour+30*time.Minute, clock)

	_, _, ok, err = Order{ID: 2, Date: "2025-12-22"}.When()
	require.NoError(t, err)
	assert.False(t, ok, "no time means unconstrained")

	_, _, _, err = Order{ID: 3, Date: "22/12/2025", Time: "10:00"}.When()
	assert.Error(t, err)
}

func TestScheduleCovers(t *testing.T) {
	s := Schedule{DayOfWeek: "MONDAY", From: "08:00:00", Until: "12:00:00"}
	assert.True(t, s.Covers(time.Monday, 8*time.Hour), "from is inclusive")
	assert.True(t, s.Covers(time.Monday, 12*time.Hour), "until is inclusive")
	assert.False(t, s.Covers(time.Monday, 12*time.Hour+time.Second))
	assert.False(t, s.Covers(time.Tuesday, 9*time.Hour))

	bad := Schedule{DayOfWeek: "FUNDAY", From: "08:00", Until: "12:00"}
	assert.False(t, bad.Covers(time.Monday, 9*time.Hour))
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("SATURDAY")
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, d)
	d, err = ParseWeekday("sun")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)
}
