package combine

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"

	"hcpextract/internal/aggregate"
	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/status"
)

// Row is one value cell of a derived text file.
type Row struct {
	PID       string  `parquet:"name=pid, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Session   string  `parquet:"name=session, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Scan      string  `parquet:"name=scan, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Direction string  `parquet:"name=direction, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Contrast  string  `parquet:"name=contrast, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Line      int64   `parquet:"name=line, type=INT64"`
	Column    int64   `parquet:"name=column, type=INT64"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
}

// Querier is the read side of the status store.
type Querier interface {
	Query(ctx context.Context, filter status.Filter) ([]status.Record, error)
}

// Options configures one combine run.
type Options struct {
	Store      Querier
	Filter     status.Filter
	Workers    int
	OutputPath string
	Logger     *slog.Logger
}

// Result reports what Run produced.
type Result struct {
	OutputPath string
	Files      int
	Rows       int
}

// ErrUnparsedPath is returned when a recorded path does not carry the
// identifiers a combined row needs.
var ErrUnparsedPath = errors.New("path does not match contrast file layout")

// parquetWriters is the writer goroutine count passed to parquet-go.
const parquetWriters = 4

// Run gates on the status store, reads every matching derived file across
// Options.Workers goroutines and writes one Parquet file. Nothing is written
// when the gate fails or any file cannot be read.
func Run(ctx context.Context, opts Options) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "combine")
	if opts.Store == nil {
		return Result{}, errors.New("combine: store is required")
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return Result{}, errors.New("combine: output path is required")
	}

	records, err := opts.Store.Query(ctx, opts.Filter)
	if err != nil {
		return Result{}, fmt.Errorf("query status: %w", err)
	}
	if err := aggregate.Verify(records); err != nil {
		logging.ErrorWithContext(logger, "combine gate failed", "combine_gate_failed",
			logging.String(logging.FieldTask, opts.Filter.Task),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run extract until every output is built"),
		)
		return Result{}, err
	}

	started := time.Now()
	rows, err := readAll(ctx, records, opts.Workers, logger)
	if err != nil {
		return Result{}, err
	}
	sortRows(rows)

	if err := writeParquet(opts.OutputPath, rows); err != nil {
		return Result{}, err
	}
	logger.Info("combined output written",
		logging.String(logging.FieldEventType, "combine_complete"),
		logging.String(logging.FieldTask, opts.Filter.Task),
		logging.String("output", opts.OutputPath),
		logging.Int("files", len(records)),
		logging.Int("rows", len(rows)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Result{OutputPath: opts.OutputPath, Files: len(records), Rows: len(rows)}, nil
}

func readAll(ctx context.Context, records []status.Record, workers int, logger *slog.Logger) ([]Row, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}
	parts := make([][]status.Record, workers)
	for i, rec := range records {
		parts[i%workers] = append(parts[i%workers], rec)
	}

	results := make(chan []Row, workers)
	g, gctx := errgroup.WithContext(ctx)
	for idx, part := range parts {
		g.Go(func() error {
			var table []Row
			for _, rec := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows, err := ReadFile(rec.Filepath)
				if err != nil {
					return err
				}
				table = append(table, rows...)
			}
			logger.Debug("combine worker finished",
				logging.Int(logging.FieldWorker, idx),
				logging.Int("files", len(part)),
				logging.Int("rows", len(table)),
			)
			results <- table
			return nil
		})
	}
	err := g.Wait()
	close(results)
	if err != nil {
		return nil, err
	}

	var all []Row
	for table := range results {
		all = append(all, table...)
	}
	return all, nil
}

// ReadFile parses one derived text file into rows. Each whitespace separated
// value on a line becomes one row.
func ReadFile(path string) ([]Row, error) {
	ids, ok := pathmeta.ParseContrastFile(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnparsedPath)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open derived file: %w", err)
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		for col, cell := range strings.Fields(scanner.Text()) {
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: parse value %q: %w", path, line+1, cell, err)
			}
			rows = append(rows, Row{
				PID:       ids.Subject,
				Session:   ids.Session,
				Scan:      ids.Scan,
				Direction: ids.Direction,
				Contrast:  ids.Contrast,
				Line:      int64(line),
				Column:    int64(col),
				Value:     value,
			})
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func sortRows(rows []Row) {
	slices.SortFunc(rows, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(a.PID, b.PID),
			cmp.Compare(a.Session, b.Session),
			cmp.Compare(a.Scan, b.Scan),
			cmp.Compare(a.Contrast, b.Contrast),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
		)
	})
}

// writeParquet writes rows to a sibling temp file and renames it over path.
func writeParquet(path string, rows []Row) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(Row), parquetWriters)
	if err != nil {
		fw.Close()
		return fmt.Errorf("init parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			fw.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish parquet file: %w", err)
	}
	return nil
}
