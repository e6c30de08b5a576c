package casework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/errs"
)

func TestParseScheduleDefaultsToEveryMinute(t *testing.T) {
	schedule, err := ParseSchedule("")
	require.NoError(t, err)
	assert.True(t, schedule.Next(t0).Equal(t0.Add(time.Minute)))
}

func TestParseScheduleCron(t *testing.T) {
	schedule, err := ParseSchedule("*/5 * * * *")
	require.NoError(t, err)
	assert.True(t, schedule.Next(t0).Equal(t0.Add(5*time.Minute)))
}

func TestParseScheduleRejectsGarbage(t *testing.T) {
	_, err := ParseSchedule("every so often")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}
