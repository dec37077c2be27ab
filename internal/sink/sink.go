package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"sparkify_etl/internal/schema"
	"sparkify_etl/internal/storage"
)

const (
	// SuccessMarker is written last, once every part file is in place.
	SuccessMarker = "_SUCCESS"
	// DefaultPartition stands in for an empty partition value.
	DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

	writerParallelism = 4
	flushEvery        = 100000
)

// Writer writes tables below the root of a store in overwrite mode.
type Writer struct {
	store   storage.Store
	tempDir string
	log     *zap.Logger
}

func NewWriter(store storage.Store, tempDir string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{store: store, tempDir: tempDir, log: log}
}

// Result summarises one table write.
type Result struct {
	Table string
	Path  string
	Files int
	Rows  int
}

// Write replaces everything at table.Path with rows, one snappy parquet part
// file per partition. A failure part-way leaves the destination partially
// written.
func Write[R schema.Row](ctx context.Context, w *Writer, table schema.TableSpec, rows []R) (Result, error) {
	res := Result{Table: table.Name, Path: table.Path}

	if err := w.store.RemoveAll(ctx, table.Path); err != nil {
		return res, fmt.Errorf("clear %s: %w", table.Path, err)
	}

	groups, err := groupByPartition(table, rows)
	if err != nil {
		return res, err
	}
	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	jobID := uuid.NewString()
	for i, dir := range dirs {
		name := fmt.Sprintf("part-%05d-%s.snappy.parquet", i, jobID)
		key := storage.JoinKey(table.Path, dir, name)
		if err := w.writePart(ctx, table, key, groups[dir]); err != nil {
			return res, err
		}
		res.Files++
		res.Rows += len(groups[dir])
	}

	if err := w.store.Put(ctx, storage.JoinKey(table.Path, SuccessMarker), bytes.NewReader(nil)); err != nil {
		return res, fmt.Errorf("write %s marker: %w", table.Path, err)
	}

	w.log.Info("table written",
		zap.String("table", table.Name),
		zap.String("path", storage.JoinKey(w.store.URI(), table.Path)),
		zap.Int("files", res.Files),
		zap.Int("rows", res.Rows),
	)
	return res, nil
}

func groupByPartition[R schema.Row](table schema.TableSpec, rows []R) (map[string][]any, error) {
	groups := make(map[string][]any)
	for _, row := range rows {
		values := row.PartitionValues()
		if len(values) != len(table.PartitionBy) {
			return nil, fmt.Errorf("table %s: row has %d partition values, want %d",
				table.Name, len(values), len(table.PartitionBy))
		}
		dir := PartitionPath(table.PartitionBy, values)
		groups[dir] = append(groups[dir], row.Payload())
	}
	return groups, nil
}

// PartitionPath renders Hive-style directories, e.g. "year=2018/month=11".
func PartitionPath(columns, values []string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		v := values[i]
		if v == "" {
			v = DefaultPartition
		} else {
			v = escapePartitionValue(v)
		}
		parts[i] = col + "=" + v
	}
	return strings.Join(parts, "/")
}

func escapePartitionValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte("\"#%'*/:=?\\{[]^", c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// writePart encodes payloads into a local temp file and uploads it to key.
func (w *Writer) writePart(ctx context.Context, table schema.TableSpec, key string, payloads []any) error {
	if err := os.MkdirAll(w.tempDir, 0o755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	localName := filepath.Join(w.tempDir, fmt.Sprintf("%s-%s.parquet", table.Name, uuid.NewString()))
	defer os.Remove(localName)

	if err := encodeParquet(localName, table.Payload, payloads); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	f, err := os.Open(localName)
	if err != nil {
		return fmt.Errorf("open encoded part %s: %w", localName, err)
	}
	defer f.Close()

	if err := w.store.Put(ctx, key, f); err != nil {
		return err
	}
	w.log.Debug("part written", zap.String("key", key), zap.Int("rows", len(payloads)))
	return nil
}

func encodeParquet(name string, prototype any, payloads []any) error {
	fw, err := local.NewLocalFileWriter(name)
	if err != nil {
		return fmt.Errorf("create local file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, prototype, writerParallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, p := range payloads {
		if err := pw.Write(p); err != nil {
			fw.Close()
			return fmt.Errorf("write record %d: %w", i, err)
		}
		if (i+1)%flushEvery == 0 {
			if err := pw.Flush(true); err != nil {
				fw.Close()
				return fmt.Errorf("flush after record %d: %w", i, err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}
