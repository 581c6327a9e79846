package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Month
		wantErr bool
	}{
		{"year-month", "2025-09", Month{2025, time.September}, false},
		{"first day", "2025-04-01", Month{2025, time.April}, false},
		{"last day", "2025-04-30", Month{2025, time.April}, false},
		{"leap day", "2024-02-29", Month{2024, time.February}, false},
		{"surrounding whitespace", " 2025-12 ", Month{2025, time.December}, false},
		{"impossible day", "2025-02-30", Month{}, true},
		{"month out of range", "2025-13", Month{}, true},
		{"single digit month", "2025-9", Month{}, true},
		{"empty", "", Month{}, true},
		{"garbage", "september", Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var be *Error
				require.True(t, errors.As(err, &be))
				assert.Equal(t, CodeMalformedMonth, be.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonth_KeyIsSameForEveryDay(t *testing.T) {
	first := MustParseMonth("2025-04-01")
	last := MustParseMonth("2025-04-30")
	plain := MustParseMonth("2025-04")

	assert.Equal(t, "2025-04-01", first.Key())
	assert.Equal(t, first.Key(), last.Key())
	assert.Equal(t, first.Key(), plain.Key())
}

func TestMonth_AdjacentMonthsDoNotAlias(t *testing.T) {
	june := MustParseMonth("2026-06")

	assert.NotEqual(t, june.Key(), MustParseMonth("2026-05-31").Key())
	assert.NotEqual(t, june.Key(), MustParseMonth("2026-07-01").Key())
	assert.Equal(t, june.Key(), MustParseMonth("2026-06-30").Key())
	assert.Equal(t, "2026-05", june.Prev().String())
	assert.Equal(t, "2026-07", june.Next().String())
}

func TestMonth_Boundaries(t *testing.T) {
	tests := []struct {
		month     string
		start     string
		nextStart string
		lastDay   string
	}{
		{"2025-01", "2025-01-01", "2025-02-01", "2025-01-31"},
		{"2024-02", "2024-02-01", "2024-03-01", "2024-02-29"},
		{"2025-02", "2025-02-01", "2025-03-01", "2025-02-28"},
		{"2025-12", "2025-12-01", "2026-01-01", "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			m := MustParseMonth(tt.month)
			assert.Equal(t, tt.start, m.Start().Format(dayLayout))
			assert.Equal(t, tt.nextStart, m.NextStart().Format(dayLayout))
			assert.Equal(t, tt.lastDay, m.LastDay().Format(dayLayout))
		})
	}
}

func TestMonth_Reference(t *testing.T) {
	assert.Equal(t, "September 2025 Services", MustParseMonth("2025-09").Reference())
}

func TestMonthOf_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 2025-05-01 05:00 in UTC+10 is still April 30 in UTC
	local := time.Date(2025, time.May, 1, 5, 0, 0, 0, loc)

	assert.Equal(t, "2025-04", MonthOf(local).String())
}

func TestLastDayOfMonth(t *testing.T) {
	now := time.Date(2025, time.October, 3, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-10-31", LastDayOfMonth(now).Format(dayLayout))
}
