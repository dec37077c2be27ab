package schema

import "strconv"

// Row is an output row. PartitionValues line up with the owning table's
// PartitionBy columns; Payload is what lands in the parquet file, i.e. the
// row without its partition columns.
type Row interface {
	PartitionValues() []string
	Payload() any
}

// TableSpec describes one output table of the lake.
type TableSpec struct {
	Name        string
	Path        string
	PartitionBy []string
	// Payload is a pointer to the payload struct, used as the parquet schema.
	Payload any
}

var (
	SongsTable = TableSpec{
		Name:        "songs",
		Path:        "song_data/songs.parquet",
		PartitionBy: []string{"year", "artist_id"},
		Payload:     new(SongFile),
	}
	ArtistsTable = TableSpec{
		Name:    "artists",
		Path:    "song_data/artists.parquet",
		Payload: new(ArtistRow),
	}
	UsersTable = TableSpec{
		Name:    "users",
		Path:    "user_data/users.parquet",
		Payload: new(UserRow),
	}
	SongplaysTable = TableSpec{
		Name:        "songplays",
		Path:        "songsplay_data/songsplay.parquet",
		PartitionBy: []string{"year", "month"},
		Payload:     new(SongplayFile),
	}
	TimeTable = TableSpec{
		Name:        "time",
		Path:        "time_data/time.parquet",
		PartitionBy: []string{"year", "month"},
		Payload:     new(TimeFile),
	}
)

type SongRow struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int32
	Duration float32
}

type SongFile struct {
	SongID   string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title    string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Duration float32 `parquet:"name=duration, type=FLOAT"`
}

func (r SongRow) PartitionValues() []string {
	return []string{strconv.Itoa(int(r.Year)), r.ArtistID}
}

func (r SongRow) Payload() any {
	return SongFile{SongID: r.SongID, Title: r.Title, Duration: r.Duration}
}

type ArtistRow struct {
	ArtistID  string   `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string   `parquet:"name=artist_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location  string   `parquet:"name=artist_location, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude  *float32 `parquet:"name=artist_latitude, type=FLOAT, repetitiontype=OPTIONAL"`
	Longitude *float32 `parquet:"name=artist_longitude, type=FLOAT, repetitiontype=OPTIONAL"`
}

func (r ArtistRow) PartitionValues() []string { return nil }
func (r ArtistRow) Payload() any { return r }

type UserRow struct {
	UserID    string `parquet:"name=userId, type=BYTE_ARRAY, convertedtype=UTF8"`
	FirstName string `parquet:"name=firstName, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string `parquet:"name=lastName, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gender    string `parquet:"name=gender, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (r UserRow) PartitionValues() []string { return nil }
func (r UserRow) Payload() any { return r }

type SongplayRow struct {
	UserID    string
	SongID    string
	ArtistID  string
	SessionID int64
	Level     string
	Location  string
	UserAgent string
	Datetime  string
	Month     int32
	Year      int32
}

type SongplayFile struct {
	UserID    string `parquet:"name=userId, type=BYTE_ARRAY, convertedtype=UTF8"`
	SongID    string `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID  string `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionID int64  `parquet:"name=sessionId, type=INT64"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location  string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserAgent string `parquet:"name=userAgent, type=BYTE_ARRAY, convertedtype=UTF8"`
	Datetime  string `parquet:"name=datetime, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (r SongplayRow) PartitionValues() []string {
	return []string{strconv.Itoa(int(r.Year)), strconv.Itoa(int(r.Month))}
}

func (r SongplayRow) Payload() any {
	return SongplayFile{
		UserID:    r.UserID,
		SongID:    r.SongID,
		ArtistID:  r.ArtistID,
		SessionID: r.SessionID,
		Level:     r.Level,
		Location:  r.Location,
		UserAgent: r.UserAgent,
		Datetime:  r.Datetime,
	}
}

type TimeRow struct {
	Datetime   string
	Hour       int32
	Month      int32
	Year       int32
	Weekday    int32
	WeekOfYear int32
}

type TimeFile struct {
	Datetime   string `parquet:"name=datetime, type=BYTE_ARRAY, convertedtype=UTF8"`
	Hour       int32  `parquet:"name=hour, type=INT32"`
	Weekday    int32  `parquet:"name=weekday, type=INT32"`
	WeekOfYear int32  `parquet:"name=weekofyear, type=INT32"`
}

func (r TimeRow) PartitionValues() []string {
	return []string{strconv.Itoa(int(r.Year)), strconv.Itoa(int(r.Month))}
}

func (r TimeRow) Payload() any {
	return TimeFile{Datetime: r.Datetime, Hour: r.Hour, Weekday: r.Weekday, WeekOfYear: r.WeekOfYear}
}
