// Package upload splits tabular datasets into parquet chunks and sends them
// to a data push job, one chunk at a time.
package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/controlplane-com/pool-orchestrator/pkg/dataset"
	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

// DefaultChunkSize is the number of rows per chunk when none is configured
const DefaultChunkSize = 100_000

// API is the subset of the platform client the uploader needs
type API interface {
	UploadChunk(ctx context.Context, poolID, jobID string, chunk []byte) error
	DeleteChunk(ctx context.Context, poolID, jobID string, chunk []byte) error
}

// Chunk is one uploaded slice of a dataset, covering rows [Start, End)
type Chunk struct {
	SequenceIndex int
	ByteSize      int
	Start         int
	End           int
}

// Rows returns the number of rows in the chunk
func (c Chunk) Rows() int {
	return c.End - c.Start
}

// Plan splits n rows into contiguous ranges of at most size rows, in order.
// ByteSize is left zero.
func Plan(n, size int) []Chunk {
	if n <= 0 || size <= 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		chunks = append(chunks, Chunk{
			SequenceIndex: len(chunks),
			Start:         start,
			End:           min(start+size, n),
		})
	}
	return chunks
}

// Uploader sends datasets to push jobs. It does not execute the job; callers
// run operation.Controller.Execute afterwards and delete the job when done.
type Uploader struct {
	api       API
	chunkSize int
	logger    *slog.Logger
}

// Option configures an Uploader
type Option func(*Uploader)

// WithChunkSize sets the maximum number of rows per chunk
func WithChunkSize(n int) Option {
	return func(u *Uploader) { u.chunkSize = n }
}

// WithLogger sets the uploader logger
func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) { u.logger = l }
}

// NewUploader creates an Uploader. The chunk size must be positive.
func NewUploader(api API, opts ...Option) (*Uploader, error) {
	u := &Uploader{
		api:       api,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.chunkSize <= 0 {
		return nil, apierr.InvalidConfig("chunk size must be positive, got %d", u.chunkSize)
	}
	return u, nil
}

// ChunkSize returns the maximum number of rows per chunk
func (u *Uploader) ChunkSize() int {
	return u.chunkSize
}

// Upload sends t to the push job as upserted chunks
func (u *Uploader) Upload(ctx context.Context, t *dataset.Table, job operation.BulkPushExecution) ([]Chunk, error) {
	return u.send(ctx, t, job, "upsert", u.api.UploadChunk)
}

// Delete sends t to the push job as deleted chunks. Rows are matched on the job keys.
func (u *Uploader) Delete(ctx context.Context, t *dataset.Table, job operation.BulkPushExecution) ([]Chunk, error) {
	return u.send(ctx, t, job, "delete", u.api.DeleteChunk)
}

type sendFunc func(ctx context.Context, poolID, jobID string, chunk []byte) error

// send validates and normalizes the whole table before the first request,
// then uploads chunks strictly in order. The first failure stops the upload.
func (u *Uploader) send(ctx context.Context, t *dataset.Table, job operation.BulkPushExecution, action string, fn sendFunc) ([]Chunk, error) {
	if job.PoolID == "" || job.PushJobID == "" {
		return nil, apierr.InvalidConfig("push job reference needs a pool id and a job id")
	}
	if t.Len() == 0 {
		return nil, &apierr.Error{
			Kind:      apierr.KindEmptyDataset,
			Operation: job.Kind().String(),
			PoolID:    job.PoolID,
			JobID:     job.PushJobID,
			Message:   "dataset has no rows",
		}
	}

	normalized, err := dataset.Normalize(t)
	if err != nil {
		return nil, annotate(err, job)
	}

	plan := Plan(normalized.Len(), u.chunkSize)
	for i := range plan {
		c := &plan[i]
		data, err := Encode(normalized.Slice(c.Start, c.End))
		if err != nil {
			return plan[:i], annotate(err, job)
		}
		c.ByteSize = len(data)

		if err := fn(ctx, job.PoolID, job.PushJobID, data); err != nil {
			return plan[:i], fmt.Errorf("failed to %s chunk %d of push job %s in pool %s: %w", action, c.SequenceIndex, job.PushJobID, job.PoolID, err)
		}
		u.logger.Debug("sent chunk",
			"action", action,
			"poolId", job.PoolID,
			"jobId", job.PushJobID,
			"index", c.SequenceIndex,
			"rows", c.Rows(),
			"bytes", c.ByteSize)
	}

	u.logger.Info("sent dataset",
		"action", action,
		"poolId", job.PoolID,
		"jobId", job.PushJobID,
		"rows", normalized.Len(),
		"chunks", len(plan))
	return plan, nil
}

// annotate fills in the job identifiers of a classified error
func annotate(err error, job operation.BulkPushExecution) error {
	if e, ok := err.(*apierr.Error); ok {
		e.Operation = job.Kind().String()
		e.PoolID = job.PoolID
		e.JobID = job.PushJobID
	}
	return err
}
