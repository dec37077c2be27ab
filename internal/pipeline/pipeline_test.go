package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"sparkify_etl/internal/config"
	"sparkify_etl/internal/metrics"
	"sparkify_etl/internal/schema"
	"sparkify_etl/internal/session"
)

const (
	kidCudiSong = `{"num_songs": 1, "artist_id": "ARKC", "artist_latitude": 41.50471, "artist_longitude": -81.69074, "artist_location": "Cleveland, OH", "artist_name": "Kid Cudi", "song_id": "SOXXX", "title": "Make Her Say", "duration": 237.73995, "year": 2009}`
	otherSong   = `{"num_songs": 1, "artist_id": "ARDR", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Des'ree", "song_id": "SOYYY", "title": "You Gotta Be", "duration": 246.30812, "year": 0}`

	eventLog = `{"artist":"Kid Cudi","auth":"Logged In","firstName":"Kaylee","gender":"F","itemInSession":0,"lastName":"Summers","length":237.73995,"level":"free","location":"Phoenix-Mesa-Scottsdale, AZ","method":"PUT","page":"NextSong","registration":1540344794796.0,"sessionId":139,"song":"Make Her Say","status":200,"ts":1513720872796,"userAgent":"Mozilla\/5.0","userId":"8"}
{"artist":"Kid Cudi","auth":"Logged In","firstName":"Kaylee","gender":"F","itemInSession":1,"lastName":"Summers","length":null,"level":"paid","location":"Phoenix-Mesa-Scottsdale, AZ","method":"GET","page":"Home","registration":1540344794796.0,"sessionId":139,"song":"Make Her Say","status":200,"ts":1513720900000,"userAgent":"Mozilla\/5.0","userId":"8"}
{"artist":"Nobody","auth":"Logged In","firstName":"Walter","gender":"M","itemInSession":0,"lastName":"Frye","length":100.5,"level":"free","location":"San Francisco, CA","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":38,"song":"Unknown","status":200,"ts":1541105830796,"userAgent":"Mozilla\/5.0","userId":39}
`
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func seedInput(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "song_data/A/B/C/TRABCKC.json", kidCudiSong)
	writeFile(t, root, "song_data/A/B/D/TRABDDR.json", otherSong)
	writeFile(t, root, "log_data/2018/11/2018-11-01-events.json", eventLog)
	return root
}

type fixture struct {
	pipeline *Pipeline
	metrics  *metrics.Metrics
	output   string
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, input string) fixture {
	t.Helper()
	cfg := config.Config{
		AppName:    "sparkify-etl",
		InputRoot:  input,
		OutputRoot: t.TempDir(),
		Engine: config.EngineConfig{
			Workers:  2,
			TempDir:  t.TempDir(),
			Timezone: "UTC",
		},
		Join: config.JoinConfig{Strategy: config.JoinExact},
	}

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	sess, err := session.New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	m := metrics.New(cfg, log)
	p, err := New(cfg, sess, m, log)
	require.NoError(t, err)
	return fixture{pipeline: p, metrics: m, output: cfg.OutputRoot, logs: logs}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// readTable reads every part file below dir/table.
func readTable[T any](t *testing.T, dir, table string) map[string][]T {
	t.Helper()
	out := make(map[string][]T)
	for _, rel := range listFiles(t, filepath.Join(dir, filepath.FromSlash(table))) {
		if !strings.HasSuffix(rel, ".parquet") {
			continue
		}
		fr, err := local.NewLocalFileReader(filepath.Join(dir, filepath.FromSlash(table), filepath.FromSlash(rel)))
		require.NoError(t, err)
		pr, err := reader.NewParquetReader(fr, new(T), 1)
		require.NoError(t, err)
		rows := make([]T, int(pr.GetNumRows()))
		require.NoError(t, pr.Read(&rows))
		pr.ReadStop()
		require.NoError(t, fr.Close())
		out[filepath.ToSlash(filepath.Dir(rel))] = append(out[filepath.ToSlash(filepath.Dir(rel))], rows...)
	}
	return out
}

func TestRunBuildsStarSchema(t *testing.T) {
	f := newFixture(t, seedInput(t))
	require.NoError(t, f.pipeline.Run(context.Background()))

	songs := readTable[schema.SongFile](t, f.output, schema.SongsTable.Path)
	assert.Equal(t, []schema.SongFile{{SongID: "SOXXX", Title: "Make Her Say", Duration: 237.73995}}, songs["year=2009/artist_id=ARKC"])
	assert.Len(t, songs["year=0/artist_id=ARDR"], 1)

	artists := readTable[schema.ArtistRow](t, f.output, schema.ArtistsTable.Path)
	require.Len(t, artists["."], 2)
	assert.Equal(t, "ARDR", artists["."][0].ArtistID)
	assert.Nil(t, artists["."][0].Latitude)
	assert.Equal(t, "ARKC", artists["."][1].ArtistID)
	require.NotNil(t, artists["."][1].Latitude)

	users := readTable[schema.UserRow](t, f.output, schema.UsersTable.Path)
	require.Len(t, users["."], 2)
	assert.Equal(t, "8", users["."][0].UserID)
	assert.Equal(t, "paid", users["."][0].Level)
	assert.Equal(t, "39", users["."][1].UserID)

	plays := readTable[schema.SongplayFile](t, f.output, schema.SongplaysTable.Path)
	require.Len(t, plays, 1)
	require.Len(t, plays["year=2017/month=12"], 1)
	play := plays["year=2017/month=12"][0]
	assert.Equal(t, "8", play.UserID)
	assert.Equal(t, "SOXXX", play.SongID)
	assert.Equal(t, "ARKC", play.ArtistID)
	assert.Equal(t, int64(139), play.SessionID)
	assert.Equal(t, "2017-12-19 22:01:12", play.Datetime)

	times := readTable[schema.TimeFile](t, f.output, schema.TimeTable.Path)
	require.Len(t, times["year=2017/month=12"], 1)
	assert.Equal(t, schema.TimeFile{Datetime: "2017-12-19 22:01:12", Hour: 22, Weekday: 3, WeekOfYear: 51}, times["year=2017/month=12"][0])

	for _, table := range []string{
		schema.SongsTable.Path,
		schema.ArtistsTable.Path,
		schema.UsersTable.Path,
		schema.SongplaysTable.Path,
		schema.TimeTable.Path,
	} {
		assert.FileExists(t, filepath.Join(f.output, filepath.FromSlash(table), "_SUCCESS"))
	}

	var messages []string
	for _, entry := range f.logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Subset(t, messages, []string{
		"created songs and artists tables",
		"wrote songs and artists tables",
		"created users, songplays and time tables",
		"wrote users, songplays and time tables",
	})
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, seedInput(t))
	require.NoError(t, f.pipeline.Run(context.Background()))

	first := readTable[schema.SongplayFile](t, f.output, schema.SongplaysTable.Path)
	firstFiles := len(listFiles(t, f.output))

	require.NoError(t, f.pipeline.Run(context.Background()))

	assert.Equal(t, first, readTable[schema.SongplayFile](t, f.output, schema.SongplaysTable.Path))
	assert.Len(t, listFiles(t, f.output), firstFiles)
}

func TestRunFailsWithoutSongData(t *testing.T) {
	input := t.TempDir()
	writeFile(t, input, "log_data/2018/11/2018-11-01-events.json", eventLog)

	f := newFixture(t, input)
	err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process song data")
	assert.Empty(t, listFiles(t, f.output))
}

func TestRunFailsOnMalformedLog(t *testing.T) {
	input := seedInput(t)
	writeFile(t, input, "log_data/2018/11/2018-11-02-events.json", `{"page": nope}`)

	f := newFixture(t, input)
	err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process log data")

	// song phase completed before the failure
	assert.FileExists(t, filepath.Join(f.output, "song_data", "artists.parquet", "_SUCCESS"))
	assert.NoDirExists(t, filepath.Join(f.output, "songsplay_data"))
}

func TestNewRejectsUnknownJoinStrategy(t *testing.T) {
	cfg := config.Config{Join: config.JoinConfig{Strategy: "fuzzy"}}
	_, err := New(cfg, nil, nil, nil)
	assert.Error(t, err)
}
