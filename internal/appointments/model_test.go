package appointments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

func TestParseDate(t *testing.T) {
	iso, err := ParseDate("2025-07-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), iso)

	slash, err := ParseDate("15/07/2025")
	require.NoError(t, err)
	assert.Equal(t, iso, slash, "both formats normalize to the same instant")

	_, err = ParseDate("07/15/2025")
	require.Error(t, err, "month-first dates are rejected")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = ParseDate("tomorrow")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestParseSlotTime(t *testing.T) {
	got, err := ParseSlotTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", got)

	_, err = ParseSlotTime("9:30am")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestExpandStatusFilter(t *testing.T) {
	tests := []struct {
		filter string
		want   []Status
	}{
		{"", nil},
		{"pending", []Status{StatusScheduled}},
		{"upcoming", []Status{StatusScheduled, StatusConfirmed}},
		{"completed", []Status{StatusCompleted}},
		{"CANCELLED", []Status{StatusCancelled}},
	}
	for _, tt := range tests {
		got, err := ExpandStatusFilter(tt.filter)
		require.NoError(t, err, tt.filter)
		assert.Equal(t, tt.want, got, tt.filter)
	}

	_, err := ExpandStatusFilter("done")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusNoShow.Terminal())

	assert.True(t, StatusScheduled.Active())
	assert.True(t, StatusConfirmed.Active())
	assert.False(t, StatusCancelled.Active())
}
