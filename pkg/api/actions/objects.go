package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

// ObjectSource lists and reads pre-built parquet chunk files
type ObjectSource interface {
	ListKeys(ctx context.Context, prefix, suffix string) ([]string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	DeleteKeys(ctx context.Context, keys []string) error
}

// ObjectPushRequest pushes every parquet object under Prefix, in key order
type ObjectPushRequest struct {
	PushTarget
	Prefix      string
	DeleteAfter bool // remove the objects once the push succeeded
}

// ObjectPushResult describes a finished object push
type ObjectPushResult struct {
	JobID string
	Keys  []string
	Bytes int
	Run   *operation.Run
}

// PushObjects uploads parquet files from an object store as chunks of one push
// job, executes the job and deletes it. Files are sent unchanged, so they must
// already match the target table.
func PushObjects(goCtx context.Context, ctx *Context, src ObjectSource, req ObjectPushRequest) (*ObjectPushResult, error) {
	req.PoolID = ctx.pool(req.PoolID)
	if err := req.validate(); err != nil {
		return nil, err
	}

	keys, err := src.ListKeys(goCtx, req.Prefix, ".parquet")
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk files under %q: %w", req.Prefix, err)
	}
	if len(keys) == 0 {
		return nil, &apierr.Error{
			Kind:      apierr.KindEmptyDataset,
			Operation: operation.KindPush.String(),
			PoolID:    req.PoolID,
			Message:   fmt.Sprintf("no parquet files under %q", req.Prefix),
		}
	}

	if err := checkReplace(goCtx, ctx, req.PushTarget); err != nil {
		return nil, err
	}

	result := &ObjectPushResult{}
	err = withPushJob(goCtx, ctx, req.PushTarget, req.ColumnConfig, func(op operation.BulkPushExecution) error {
		result.JobID = op.PushJobID
		for i, key := range keys {
			data, err := src.Download(goCtx, key)
			if err != nil {
				return err
			}
			if err := ctx.Client.UploadChunk(goCtx, op.PoolID, op.PushJobID, data); err != nil {
				return fmt.Errorf("failed to upload chunk %d (%s): %w", i, key, err)
			}
			result.Keys = append(result.Keys, key)
			result.Bytes += len(data)
			slog.Debug("uploaded chunk file", "poolId", op.PoolID, "jobId", op.PushJobID, "key", key, "bytes", len(data))
		}
		return nil
	}, func(run *operation.Run) { result.Run = run })
	if err != nil {
		return result, err
	}

	slog.Info("pushed chunk files", "poolId", req.PoolID, "table", req.Table, "files", len(result.Keys), "bytes", result.Bytes)

	if req.DeleteAfter {
		if err := src.DeleteKeys(goCtx, result.Keys); err != nil {
			return result, fmt.Errorf("push succeeded but removing chunk files failed: %w", err)
		}
	}
	return result, nil
}
