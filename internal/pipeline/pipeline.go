package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sparkify_etl/internal/config"
	"sparkify_etl/internal/extract"
	"sparkify_etl/internal/metrics"
	"sparkify_etl/internal/schema"
	"sparkify_etl/internal/session"
	"sparkify_etl/internal/sink"
	"sparkify_etl/internal/transform"
)

// Pipeline runs the two phases of the job against one session.
type Pipeline struct {
	cfg     config.Config
	sess    *session.Session
	metrics *metrics.Metrics
	log     *zap.Logger
	matcher transform.Matcher
}

func New(cfg config.Config, sess *session.Session, m *metrics.Metrics, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	matcher, err := transform.MatcherFor(cfg.Join.Strategy)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, sess: sess, metrics: m, log: log, matcher: matcher}, nil
}

// Run processes song data, then log data. Metrics are pushed whatever the
// outcome.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	start := time.Now()
	p.log.Info("pipeline started",
		zap.String("input", p.cfg.InputRoot),
		zap.String("output", p.cfg.OutputRoot),
		zap.Int("schema_version", schema.SchemaVersion),
	)

	defer func() {
		if err == nil {
			p.metrics.MarkSuccess(time.Now())
		}
		if pushErr := p.metrics.Push(context.WithoutCancel(ctx)); pushErr != nil {
			p.log.Warn("metrics push failed", zap.Error(pushErr))
		}
	}()

	if err := p.ProcessSongData(ctx, p.cfg.InputRoot, p.cfg.OutputRoot); err != nil {
		return fmt.Errorf("process song data: %w", err)
	}
	if err := p.ProcessLogData(ctx, p.cfg.InputRoot, p.cfg.OutputRoot); err != nil {
		return fmt.Errorf("process log data: %w", err)
	}

	p.log.Info("pipeline completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ProcessSongData builds the songs and artists tables.
func (p *Pipeline) ProcessSongData(ctx context.Context, input, output string) error {
	start := time.Now()
	defer func() { p.metrics.ObservePhase("song_data", time.Since(start)) }()

	songs, err := extract.Songs(ctx, p.sess, input)
	if err != nil {
		return err
	}
	p.metrics.RecordExtracted("song_data", len(songs))

	songRows := transform.Songs(songs)
	artistRows := transform.Artists(songs)
	p.log.Info("created songs and artists tables",
		zap.Int("songs", len(songRows)),
		zap.Int("artists", len(artistRows)),
	)

	w, err := p.writer(output)
	if err != nil {
		return err
	}
	if err := p.write(sink.Write(ctx, w, schema.SongsTable, songRows)); err != nil {
		return err
	}
	if err := p.write(sink.Write(ctx, w, schema.ArtistsTable, artistRows)); err != nil {
		return err
	}

	p.log.Info("wrote songs and artists tables")
	return nil
}

// ProcessLogData builds the songplays fact table and the users and time
// tables. The song corpus is read again for the join.
func (p *Pipeline) ProcessLogData(ctx context.Context, input, output string) error {
	start := time.Now()
	defer func() { p.metrics.ObservePhase("log_data", time.Since(start)) }()

	logs, err := extract.Logs(ctx, p.sess, input)
	if err != nil {
		return err
	}
	p.metrics.RecordExtracted("log_data", len(logs))

	songs, err := extract.Songs(ctx, p.sess, input)
	if err != nil {
		return err
	}
	p.metrics.RecordExtracted("song_data", len(songs))

	loc := p.sess.Location()
	songplays := transform.Songplays(logs, songs, p.matcher, loc)
	users := transform.Users(logs)
	times := transform.Times(songplays, loc)
	p.log.Info("created users, songplays and time tables",
		zap.Int("users", len(users)),
		zap.Int("songplays", len(songplays)),
		zap.Int("time", len(times)),
	)

	w, err := p.writer(output)
	if err != nil {
		return err
	}
	if err := p.write(sink.Write(ctx, w, schema.UsersTable, users)); err != nil {
		return err
	}
	if err := p.write(sink.Write(ctx, w, schema.SongplaysTable, songplays)); err != nil {
		return err
	}
	if err := p.write(sink.Write(ctx, w, schema.TimeTable, times)); err != nil {
		return err
	}

	p.log.Info("wrote users, songplays and time tables")
	return nil
}

func (p *Pipeline) writer(output string) (*sink.Writer, error) {
	store, err := p.sess.Store(output)
	if err != nil {
		return nil, err
	}
	return sink.NewWriter(store, p.sess.TempDir(), p.log), nil
}

func (p *Pipeline) write(res sink.Result, err error) error {
	if err != nil {
		return fmt.Errorf("write %s: %w", res.Table, err)
	}
	p.metrics.RecordWritten(res.Table, res.Files, res.Rows)
	return nil
}
