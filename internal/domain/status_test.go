package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPlaced, StatusAccepted, true},
		{StatusAccepted, StatusProcessed, true},
		{StatusProcessed, StatusFulfilled, true},
		{StatusPlaced, StatusProcessed, false},
		{StatusAccepted, StatusPlaced, false},
		{StatusFulfilled, StatusReplaced, false},
		{StatusPlaced, StatusReplaced, false},
		{StatusReplaced, StatusAccepted, false},
		{"unknown", StatusAccepted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestActiveStatus(t *testing.T) {
	assert.True(t, ActiveStatus(StatusProcessed))
	assert.False(t, ActiveStatus(StatusFulfilled))
	assert.False(t, ActiveStatus(StatusReplaced))
}

func TestFormatReference(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "OR26-000101", FormatReference(created, 101))
}

func TestDiscountWindowAndTarget(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Discount{Start: start, End: start.Add(24 * time.Hour), Target: AudienceReseller, Percent: 10}

	assert.True(t, d.ActiveAt(start))
	assert.False(t, d.ActiveAt(start.Add(24*time.Hour)))
	assert.True(t, d.AppliesTo(AudienceReseller, "p1"))
	assert.False(t, d.AppliesTo(AudienceAll, "p1"))
	assert.NoError(t, d.Validate())

	d.Percent = 100
	assert.True(t, errors.Is(d.Validate(), ErrValidation))
}

func TestErrorIsMatchesOnCode(t *testing.T) {
	err := Newf(ErrPriceChanged, "line 2 changed from %d to %d", 100, 120)

	assert.True(t, errors.Is(err, ErrPriceChanged))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "line 2 changed from 100 to 120", MessageOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
