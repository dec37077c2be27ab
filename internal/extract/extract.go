package extract

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sparkify_etl/internal/schema"
	"sparkify_etl/internal/storage"
)

const (
	SongDataPattern = "song_data/*/*/*/*.json"
	LogDataPattern  = "log_data/*/*/*.json"
)

// Source is what the extractors need from a session.
type Source interface {
	Store(uri string) (storage.Store, error)
	Workers() int
	Logger() *zap.Logger
}

// Songs loads every song document below inputRoot.
func Songs(ctx context.Context, src Source, inputRoot string) ([]schema.SongRecord, error) {
	return load[schema.SongRecord](ctx, src, inputRoot, SongDataPattern)
}

// Logs loads every log event below inputRoot.
func Logs(ctx context.Context, src Source, inputRoot string) ([]schema.LogRecord, error) {
	return load[schema.LogRecord](ctx, src, inputRoot, LogDataPattern)
}

// load reads all files matching pattern concurrently and concatenates their
// records in key order, so the result order is stable across runs.
func load[T any](ctx context.Context, src Source, root, pattern string) ([]T, error) {
	store, err := src.Store(root)
	if err != nil {
		return nil, err
	}
	keys, err := store.Glob(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", pattern, err)
	}

	log := src.Logger()
	log.Info("reading json documents",
		zap.String("root", store.URI()),
		zap.String("pattern", pattern),
		zap.Int("files", len(keys)),
	)

	perFile := make([][]T, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(src.Workers(), 1))
	for i, key := range keys {
		g.Go(func() error {
			records, err := readFile[T](gctx, store, key)
			if err != nil {
				return err
			}
			perFile[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, records := range perFile {
		total += len(records)
	}
	out := make([]T, 0, total)
	for _, records := range perFile {
		out = append(out, records...)
	}

	log.Debug("json documents decoded", zap.String("pattern", pattern), zap.Int("records", total))
	return out, nil
}

func readFile[T any](ctx context.Context, store storage.Store, key string) ([]T, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	records, err := Decode[T](rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return records, nil
}

// Decode reads newline-delimited (or simply concatenated) JSON documents.
func Decode[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	var out []T
	for n := 1; ; n++ {
		var rec T
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		out = append(out, rec)
	}
}
