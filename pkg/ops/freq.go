package ops

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a calendar bucket size for Resample.
type Frequency string

const (
	Daily      Frequency = "D"
	Weekly     Frequency = "W"
	MonthEnd   Frequency = "M"
	QuarterEnd Frequency = "Q"
	YearEnd    Frequency = "Y"
)

// ParseFrequency accepts the short codes D, W, M, Q and Y along with
// their "ME", "QE", "YE" and "A" spellings.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(s) {
	case "D", "DAY", "DAILY":
		return Daily, nil
	case "W", "WEEK", "WEEKLY", "W-SUN":
		return Weekly, nil
	case "M", "ME", "MONTH", "MONTHLY":
		return MonthEnd, nil
	case "Q", "QE", "QUARTER", "QUARTERLY":
		return QuarterEnd, nil
	case "Y", "YE", "A", "YEAR", "YEARLY", "ANNUAL":
		return YearEnd, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// BucketEnd returns the label of the bucket containing t: the bucket's
// last day at midnight, in t's location. Weeks end on Sunday.
func (f Frequency) BucketEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch f {
	case Weekly:
		ahead := (7 - int(t.Weekday())) % 7
		return time.Date(y, m, d+ahead, 0, 0, 0, 0, loc)
	case MonthEnd:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	case QuarterEnd:
		qm := ((int(m)-1)/3 + 1) * 3
		return time.Date(y, time.Month(qm)+1, 0, 0, 0, 0, 0, loc)
	case YearEnd:
		return time.Date(y, 12, 31, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Next returns the label of the bucket after the one labelled b.
func (f Frequency) Next(b time.Time) time.Time {
	return f.BucketEnd(b.AddDate(0, 0, 1))
}
