package transform

import "time"

// DatetimeLayout renders play times with second precision.
const DatetimeLayout = "2006-01-02 15:04:05"

// PlayTime converts an epoch-millisecond timestamp to a time truncated to
// the second, in loc.
func PlayTime(ts int64, loc *time.Location) time.Time {
	sec := ts / 1000
	if ts%1000 < 0 {
		sec--
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(sec, 0).In(loc)
}

// Datetime formats ts the way the songplays and time tables store it.
func Datetime(ts int64, loc *time.Location) string {
	return PlayTime(ts, loc).Format(DatetimeLayout)
}

// dayOfWeek numbers days 1 (Sunday) through 7 (Saturday).
func dayOfWeek(t time.Time) int32 {
	return int32(t.Weekday()) + 1
}

func weekOfYear(t time.Time) int32 {
	_, week := t.ISOWeek()
	return int32(week)
}
