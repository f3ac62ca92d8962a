package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{"", "not a cron", "* * *", "61 * * * *"}
	for _, expr := range cases {
		_, err := Parse(expr)
		assert.ErrorIs(t, err, ErrInvalidCronExpression, expr)
	}
}

func TestNextFiring(t *testing.T) {
	s, err := Parse("*/15 * * * *")
	require.NoError(t, err)

	from := time.Date(2025, 6, 1, 10, 7, 0, 0, time.UTC)
	next := s.Next(from)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC), next)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("0 3 * * *"))
	assert.Error(t, Validate("bogus"))
}

func TestNilScheduleNext(t *testing.T) {
	var s *Schedule
	assert.True(t, s.Next(time.Now()).IsZero())
}
