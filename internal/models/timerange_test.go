package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresetIsLarge(t *testing.T) {
	assert.False(t, Range1M.IsLarge())
	assert.False(t, Range3M.IsLarge())
	assert.False(t, RangeYTD.IsLarge())
	assert.True(t, Range6M.IsLarge())
	assert.True(t, Range1Y.IsLarge())
	assert.True(t, Range2Y.IsLarge())
}

func TestPresetWindow(t *testing.T) {
	today := NewDate(2024, time.September, 15)

	w, ok := Range6M.Window(today)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-15", w.Start.String())
	assert.Equal(t, "2024-09-15", w.End.String())

	w, ok = RangeYTD.Window(today)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", w.Start.String())

	_, ok = RangeCustom.Window(today)
	assert.False(t, ok)
}

func TestWindowValidate(t *testing.T) {
	today := NewDate(2024, time.September, 15)

	valid := Window{Start: NewDate(2024, time.June, 1), End: NewDate(2024, time.June, 30)}
	assert.NoError(t, valid.Validate(today))

	inverted := Window{Start: NewDate(2024, time.June, 30), End: NewDate(2024, time.June, 1)}
	assert.Error(t, inverted.Validate(today))

	future := Window{Start: NewDate(2024, time.June, 1), End: NewDate(2024, time.October, 1)}
	assert.Error(t, future.Validate(today))

	empty := Window{}
	assert.Error(t, empty.Validate(today))
}

func TestWindowContainsAndDays(t *testing.T) {
	w := Window{Start: NewDate(2024, time.June, 1), End: NewDate(2024, time.June, 10)}

	assert.True(t, w.Contains(NewDate(2024, time.June, 1)))
	assert.True(t, w.Contains(NewDate(2024, time.June, 10)))
	assert.False(t, w.Contains(NewDate(2024, time.May, 31)))
	assert.False(t, w.Contains(NewDate(2024, time.June, 11)))
	assert.Equal(t, 10, w.Days())
}

func TestDisabledPresets(t *testing.T) {
	today := NewDate(2024, time.September, 15)

	// No boundary: nothing disabled
	assert.Nil(t, DisabledPresets(Date{}, today))

	// Boundary 40 days after the 6M window start disables every preset
	// reaching further back than the boundary
	boundary := NewDate(2024, time.April, 24)
	disabled := DisabledPresets(boundary, today)
	assert.Contains(t, disabled, RangeYTD)
	assert.Contains(t, disabled, Range1Y)
	assert.Contains(t, disabled, Range2Y)
	assert.Contains(t, disabled, Range6M)
	assert.NotContains(t, disabled, Range1M)
	assert.NotContains(t, disabled, Range3M)
}
