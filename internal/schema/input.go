// Package schema declares the record types read from and written to the lake.
// Input schemas are fixed rather than inferred per run; bump SchemaVersion
// whenever a declaration changes.
package schema

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

const SchemaVersion = 1

// PageNextSong marks a log event as an actual song play.
const PageNextSong = "NextSong"

// SongRecord is one document of the song_data corpus.
type SongRecord struct {
	NumSongs        int      `json:"num_songs"`
	ArtistID        string   `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  string   `json:"artist_location"`
	ArtistName      string   `json:"artist_name"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	Duration        float64  `json:"duration"`
	Year            int      `json:"year"`
}

// LogRecord is one event of the log_data corpus.
type LogRecord struct {
	Artist        string   `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     string   `json:"firstName"`
	Gender        string   `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      string   `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      string   `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  *float64 `json:"registration"`
	SessionID     int64    `json:"sessionId"`
	Song          string   `json:"song"`
	Status        int      `json:"status"`
	Ts            int64    `json:"ts"`
	UserAgent     string   `json:"userAgent"`
	UserID        UserID   `json:"userId"`
}

// UserID accepts both "8" and 8 in the source logs. Logged-out events carry "".
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("userId: unexpected value %s", data)
	}
	*u = UserID(data)
	return nil
}
