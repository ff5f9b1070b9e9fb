package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// chunkFileName is the multipart file name of uploaded chunks
const chunkFileName = "chunk.parquet"

func pushJobsPath(poolID string) string {
	return escape("/data-ingestion/api/v1/data-push/%s/jobs/", poolID)
}

func pushJobPath(poolID, jobID string) string {
	return escape("/data-ingestion/api/v1/data-push/%s/jobs/%s", poolID, jobID)
}

// CreatePushJob creates a data push job in the pool
func (c *Client) CreatePushJob(ctx context.Context, poolID string, job types.DataPushJob) (*types.DataPushJob, error) {
	if job.DataPoolID == "" {
		job.DataPoolID = poolID
	}
	var created types.DataPushJob
	if err := c.Invoke(ctx, http.MethodPost, pushJobsPath(poolID), nil, job, &created); err != nil {
		return nil, fmt.Errorf("failed to create push job for table %s: %w", job.TargetName, err)
	}
	c.logger.Info("created push job", "poolId", poolID, "jobId", created.ID, "table", job.TargetName)
	return &created, nil
}

// GetPushJob returns a data push job
func (c *Client) GetPushJob(ctx context.Context, poolID, jobID string) (*types.DataPushJob, error) {
	var job types.DataPushJob
	if err := c.Invoke(ctx, http.MethodGet, pushJobPath(poolID, jobID), nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListPushJobs returns the data push jobs of a pool
func (c *Client) ListPushJobs(ctx context.Context, poolID string) ([]types.DataPushJob, error) {
	var jobs []types.DataPushJob
	if err := c.Invoke(ctx, http.MethodGet, pushJobsPath(poolID), nil, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ExecutePushJob submits a data push job for processing
func (c *Client) ExecutePushJob(ctx context.Context, poolID, jobID string) error {
	return c.Invoke(ctx, http.MethodPost, pushJobPath(poolID, jobID), nil, nil, nil)
}

// DeletePushJob deletes a data push job and its chunks
func (c *Client) DeletePushJob(ctx context.Context, poolID, jobID string) error {
	return c.Invoke(ctx, http.MethodDelete, pushJobPath(poolID, jobID), nil, nil, nil)
}

// UploadChunk adds an upserted chunk to a push job
func (c *Client) UploadChunk(ctx context.Context, poolID, jobID string, chunk []byte) error {
	return c.postChunk(ctx, pushJobPath(poolID, jobID)+"/chunks/upserted", chunk)
}

// DeleteChunk adds a deleted chunk to a push job
func (c *Client) DeleteChunk(ctx context.Context, poolID, jobID string, chunk []byte) error {
	return c.postChunk(ctx, pushJobPath(poolID, jobID)+"/chunks/deleted", chunk)
}

// ListChunks returns the chunks registered with a push job
func (c *Client) ListChunks(ctx context.Context, poolID, jobID string) ([]types.DataPushChunk, error) {
	var chunks []types.DataPushChunk
	if err := c.Invoke(ctx, http.MethodGet, pushJobPath(poolID, jobID)+"/chunks", nil, nil, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// postChunk sends chunk as the "file" part of a multipart form. The form is
// buffered so the retrying transport can replay it.
func (c *Client) postChunk(ctx context.Context, path string, chunk []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", chunkFileName)
	if err != nil {
		return fmt.Errorf("failed to create multipart file: %w", err)
	}
	if _, err := part.Write(chunk); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, path, nil, w.FormDataContentType(), buf.Bytes(), nil)
}
