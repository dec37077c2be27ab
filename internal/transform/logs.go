package transform

import (
	"sort"
	"strconv"
	"time"

	"sparkify_etl/internal/schema"
)

// Songplays builds the fact table: NextSong events inner-joined to songs on
// the matcher key. A log row matching several songs yields one row per
// match. Output follows log order, then song order.
func Songplays(logs []schema.LogRecord, songs []schema.SongRecord, m Matcher, loc *time.Location) []schema.SongplayRow {
	index := make(map[string][]int, len(songs))
	for i, s := range songs {
		key := m.Key(s.ArtistName, s.Title)
		if key == "" {
			continue
		}
		index[key] = append(index[key], i)
	}

	var out []schema.SongplayRow
	for _, l := range logs {
		if l.Page != schema.PageNextSong {
			continue
		}
		key := m.Key(l.Artist, l.Song)
		if key == "" {
			continue
		}
		matches := index[key]
		if len(matches) == 0 {
			continue
		}

		played := PlayTime(l.Ts, loc)
		datetime := played.Format(DatetimeLayout)
		for _, i := range matches {
			out = append(out, schema.SongplayRow{
				UserID:    string(l.UserID),
				SongID:    songs[i].SongID,
				ArtistID:  songs[i].ArtistID,
				SessionID: l.SessionID,
				Level:     l.Level,
				Location:  l.Location,
				UserAgent: l.UserAgent,
				Datetime:  datetime,
				Month:     int32(played.Month()),
				Year:      int32(played.Year()),
			})
		}
	}
	return out
}

// Users projects the users dimension from every log row. For duplicate
// userIds the row with the latest ts wins; equal ts keep the later row.
// Rows come back sorted by userId, numerically where possible.
func Users(logs []schema.LogRecord) []schema.UserRow {
	type seen struct {
		row schema.UserRow
		ts  int64
	}
	byID := make(map[string]seen, len(logs))
	for _, l := range logs {
		id := string(l.UserID)
		if prev, ok := byID[id]; ok && prev.ts > l.Ts {
			continue
		}
		byID[id] = seen{
			row: schema.UserRow{
				UserID:    id,
				FirstName: l.FirstName,
				LastName:  l.LastName,
				Gender:    l.Gender,
				Level:     l.Level,
			},
			ts: l.Ts,
		}
	}

	out := make([]schema.UserRow, 0, len(byID))
	for _, s := range byID {
		out = append(out, s.row)
	}
	sort.Slice(out, func(i, j int) bool { return lessUserID(out[i].UserID, out[j].UserID) })
	return out
}

func lessUserID(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// Times breaks every songplay's datetime into calendar parts, one row per
// songplay.
func Times(songplays []schema.SongplayRow, loc *time.Location) []schema.TimeRow {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]schema.TimeRow, 0, len(songplays))
	for _, sp := range songplays {
		t, err := time.ParseInLocation(DatetimeLayout, sp.Datetime, loc)
		if err != nil {
			// |time| == |songplays| even for an unparseable datetime.
			out = append(out, schema.TimeRow{Datetime: sp.Datetime, Month: sp.Month, Year: sp.Year})
			continue
		}
		out = append(out, schema.TimeRow{
			Datetime:   sp.Datetime,
			Hour:       int32(t.Hour()),
			Month:      int32(t.Month()),
			Year:       int32(t.Year()),
			Weekday:    dayOfWeek(t),
			WeekOfYear: weekOfYear(t),
		})
	}
	return out
}
