package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/cvsearch/internal/domain/batch"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	logpkg "github.com/kailas-cloud/cvsearch/internal/logger"
	ingestuc "github.com/kailas-cloud/cvsearch/internal/usecase/ingest"
)

// maxLineBytes bounds one JSONL line; CV text can be long.
const maxLineBytes = 16 << 20

// seedLine is one JSONL input line. It mirrors the POST /records item.
type seedLine struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	UploadDate string       `json:"uploadDate"`
	Metadata   seedMetadata `json:"metadata"`
}

type seedMetadata struct {
	Skills     []string       `json:"skills"`
	Experience int            `json:"experience"`
	JobTitles  []string       `json:"jobTitles"`
	Education  []string       `json:"education"`
	Contact    record.Contact `json:"contact"`
	Custom     map[string]any `json:"custom"`
}

func newSeedCmd(g *globalOptions) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "seed <file.jsonl | ->",
		Short: "Ingest records from a JSONL file",
		Long: `Read one record per line (JSON) and ingest them in batches.

Each line has the shape of a POST /records item:
  {"id": "...", "content": "...", "uploadDate": "2024-01-31",
   "metadata": {"skills": [...], "experience": 5, "custom": {...}}}

Records whose embedding fails are still stored and stay searchable by text.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			cfg, _, logger, err := g.load(logpkg.WithStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			size := batchSize
			if size <= 0 || size > cfg.Ingest.MaxBatchSize {
				size = cfg.Ingest.MaxBatchSize
			}

			sum, err := seed(cmd.Context(), a.ingest, in, size, cmd.ErrOrStderr(), logger)
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d records (%d failed, %d without embedding)\n",
				sum.Succeeded, sum.Failed, sum.Unembedded)
			if err != nil {
				return err
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%d records failed", sum.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch", "b", 0, "records per batch (0 = ingest.max_batch_size)")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// seed streams JSONL drafts into the ingest service batch by batch.
// A malformed line counts as a failure and does not stop the run.
func seed(
	ctx context.Context,
	svc *ingestuc.Service,
	in io.Reader,
	batchSize int,
	errOut io.Writer,
	logger *zap.Logger,
) (dombatch.Summary, error) {
	var total dombatch.Summary

	flush := func(drafts []record.Draft) {
		if len(drafts) == 0 {
			return
		}
		results := svc.Ingest(ctx, drafts)
		for _, r := range results {
			if r.Err() != nil {
				fmt.Fprintf(errOut, "record %q: %v\n", r.ID(), r.Err())
			}
		}
		s := dombatch.Summarize(results)
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		total.Unembedded += s.Unembedded
		logger.Info("Seed batch ingested",
			zap.Int("size", len(drafts)),
			zap.Int("succeeded", s.Succeeded),
			zap.Int("failed", s.Failed),
		)
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	batch := make([]record.Draft, 0, batchSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		d, err := parseSeedLine(line)
		if err != nil {
			fmt.Fprintf(errOut, "line %d: %v\n", lineNo, err)
			total.Failed++
			continue
		}
		batch = append(batch, d)
		if len(batch) == batchSize {
			flush(batch)
			batch = batch[:0]
		}
		if ctx.Err() != nil {
			return total, fmt.Errorf("seed interrupted: %w", ctx.Err())
		}
	}
	if err := sc.Err(); err != nil {
		flush(batch)
		return total, fmt.Errorf("read input: %w", err)
	}
	flush(batch)
	return total, nil
}

func parseSeedLine(line []byte) (record.Draft, error) {
	var in seedLine
	if err := json.Unmarshal(line, &in); err != nil {
		return record.Draft{}, fmt.Errorf("decode: %w", err)
	}
	d := record.Draft{
		ID:      in.ID,
		Content: in.Content,
		Metadata: record.Metadata{
			Skills:     in.Metadata.Skills,
			Experience: in.Metadata.Experience,
			JobTitles:  in.Metadata.JobTitles,
			Education:  in.Metadata.Education,
			Contact:    in.Metadata.Contact,
			Custom:     in.Metadata.Custom,
		},
	}
	if in.UploadDate != "" {
		t, err := cliDate(in.UploadDate, false)
		if err != nil {
			return record.Draft{}, fmt.Errorf("uploadDate: %w", err)
		}
		d.UploadDate = *t
	}
	return d, nil
}
