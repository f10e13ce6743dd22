package times

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	type args struct {
		year int
		week int
	}

	tests := []struct {
		name    string
		args    args
		want    time.Time
		wantErr bool
	}{
		{
			name: "first week of 2024",
			args: args{year: 2024, week: 1},
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "week 26 of 2023",
			args: args{year: 2023, week: 26},
			want: time.Date(2023, 6, 26, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "invalid year",
			args:    args{year: 1000, week: 1},
			wantErr: true,
		},
		{
			name:    "invalid week",
			args:    args{year: 2024, week: 54},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WeekStart(tt.args.year, tt.args.week)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, *got)
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}
}

func TestDaysSinceLastMonday(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  int
	}{
		{
			name:  "monday",
			today: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
			want:  0,
		},
		{
			name:  "wednesday",
			today: time.Date(2024, 7, 3, 12, 0, 0, 0, time.UTC),
			want:  2,
		},
		{
			name:  "sunday",
			today: time.Date(2024, 7, 7, 12, 0, 0, 0, time.UTC),
			want:  6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysSinceLastMonday(tt.today))
		})
	}
}

func TestWeekWindow(t *testing.T) {
	start, end := WeekWindow(time.Date(2024, 7, 3, 15, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 7, 7, 23, 59, 59, 999999000, time.UTC), end)
}

func TestPrevWeekWindow_NoOverlap(t *testing.T) {
	now := time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)

	prevStart, prevEnd := PrevWeekWindow(now)
	curStart, _ := WeekWindow(now)

	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), prevStart)
	assert.True(t, prevEnd.Before(curStart))
	assert.Equal(t, time.Microsecond, curStart.Sub(prevEnd))
}
