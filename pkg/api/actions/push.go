package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/controlplane-com/pool-orchestrator/pkg/dataset"
	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
	"github.com/controlplane-com/pool-orchestrator/pkg/upload"
)

// PushMode selects how pushed rows land in the target table
type PushMode string

const (
	// PushReplace creates the table, or replaces it when DropIfExists is set
	PushReplace PushMode = "replace"
	// PushAppend adds rows to the table
	PushAppend PushMode = "append"
	// PushUpsert merges rows into the table on Keys
	PushUpsert PushMode = "upsert"
)

// PushTarget names the table a push job writes to
type PushTarget struct {
	PoolID       string // defaults to the context pool
	Table        string
	ConnectionID string // data connection holding the table; empty for the global scope
	Mode         PushMode
	Keys         []string // required for PushUpsert
	DropIfExists bool     // PushReplace only
	Force        bool     // replace an existing table without a column config
	ColumnConfig []types.ColumnTransport
}

func (p PushTarget) jobType() types.PushJobType {
	if p.Mode == PushReplace {
		return types.PushJobTypeReplace
	}
	return types.PushJobTypeDelta
}

// validate checks the target before any request is sent
func (p PushTarget) validate() error {
	if p.PoolID == "" {
		return apierr.InvalidConfig("pool id is required")
	}
	if p.Table == "" {
		return apierr.InvalidConfig("target table is required")
	}
	switch p.Mode {
	case PushReplace, PushAppend:
	case PushUpsert:
		if len(p.Keys) == 0 {
			return apierr.InvalidConfig("upsert into %s needs at least one key", p.Table)
		}
	default:
		return apierr.InvalidConfig("unknown push mode %q", p.Mode)
	}
	return nil
}

// PushRequest is a dataset pushed to one table
type PushRequest struct {
	PushTarget
	Data    *dataset.Table // upserted rows
	Deleted *dataset.Table // rows removed by key, delta modes only
}

// PushResult describes a finished push
type PushResult struct {
	JobID   string
	Chunks  []upload.Chunk
	Deleted []upload.Chunk
	Run     *operation.Run
}

// PushTable pushes a dataset through a data push job:
// create job → upload chunks → execute and wait → delete job.
// The job is deleted on every exit path once it was created.
func PushTable(goCtx context.Context, ctx *Context, req PushRequest) (*PushResult, error) {
	req.PoolID = ctx.pool(req.PoolID)
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Data.Len() == 0 && req.Deleted.Len() == 0 {
		return nil, &apierr.Error{
			Kind:      apierr.KindEmptyDataset,
			Operation: operation.KindPush.String(),
			PoolID:    req.PoolID,
			Message:   fmt.Sprintf("nothing to push to table %s", req.Table),
		}
	}
	if req.Deleted.Len() > 0 && req.Mode == PushReplace {
		return nil, apierr.InvalidConfig("deleting rows needs a delta push, not %s", req.Mode)
	}
	for _, key := range req.Keys {
		if req.Data.Len() > 0 {
			if _, ok := req.Data.Index(key); !ok {
				return nil, apierr.InvalidConfig("key %q is not a column of the pushed data", key)
			}
		}
		if req.Deleted.Len() > 0 {
			if _, ok := req.Deleted.Index(key); !ok {
				return nil, apierr.InvalidConfig("key %q is not a column of the deleted rows", key)
			}
		}
	}

	if err := checkReplace(goCtx, ctx, req.PushTarget); err != nil {
		return nil, err
	}

	schema := req.ColumnConfig
	if schema == nil && req.Mode == PushReplace && req.Data.Len() > 0 {
		// declare the inferred types, not the loader's untyped columns
		normalized, err := dataset.Normalize(req.Data)
		if err != nil {
			var apiErr *apierr.Error
			if errors.As(err, &apiErr) {
				apiErr.Operation = operation.KindPush.String()
				apiErr.PoolID = req.PoolID
			}
			return nil, err
		}
		req.Data = normalized
		schema = normalized.Schema(req.Table).Columns
		slog.Warn("no column config given, string columns use the platform default length", "table", req.Table)
	}

	result := &PushResult{}
	err := withPushJob(goCtx, ctx, req.PushTarget, schema, func(op operation.BulkPushExecution) error {
		result.JobID = op.PushJobID
		if req.Data.Len() > 0 {
			chunks, err := ctx.Uploader.Upload(goCtx, req.Data, op)
			if err != nil {
				return err
			}
			result.Chunks = chunks
		}
		if req.Deleted.Len() > 0 {
			chunks, err := ctx.Uploader.Delete(goCtx, req.Deleted, op)
			if err != nil {
				return err
			}
			result.Deleted = chunks
		}
		return nil
	}, func(run *operation.Run) { result.Run = run })
	if err != nil {
		return result, err
	}

	slog.Info("pushed table", "poolId", req.PoolID, "table", req.Table, "mode", req.Mode,
		"chunks", len(result.Chunks), "deletedChunks", len(result.Deleted))
	return result, nil
}

// checkReplace refuses to replace an existing table unless asked to
func checkReplace(goCtx context.Context, ctx *Context, target PushTarget) error {
	if target.Mode != PushReplace {
		return nil
	}
	exists, err := tableInScope(goCtx, ctx, target)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if !target.DropIfExists {
		return apierr.InvalidConfig("table %s already exists in pool %s; set DropIfExists to replace it", target.Table, target.PoolID)
	}
	if target.ColumnConfig == nil && !target.Force {
		return apierr.InvalidConfig("replacing table %s without a column config resets its schema; give a column config or set Force", target.Table)
	}
	return nil
}

func tableInScope(goCtx context.Context, ctx *Context, target PushTarget) (bool, error) {
	tables, err := ctx.Client.ListTables(goCtx, target.PoolID)
	if err != nil {
		return false, fmt.Errorf("failed to list tables of pool %s: %w", target.PoolID, err)
	}
	for _, t := range tables {
		if t.Name == target.Table && t.DataSourceID == target.ConnectionID {
			return true, nil
		}
	}
	return false, nil
}

// withPushJob creates a push job, lets fill add chunks, executes the job and
// waits for it. The job is deleted afterwards whatever happened.
func withPushJob(goCtx context.Context, ctx *Context, target PushTarget, schema []types.ColumnTransport, fill func(operation.BulkPushExecution) error, done func(*operation.Run)) (err error) {
	spec := types.DataPushJob{
		TargetName:   target.Table,
		Type:         target.jobType(),
		FileType:     types.UploadFileTypeParquet,
		ConnectionID: target.ConnectionID,
		Keys:         target.Keys,
	}
	if schema != nil {
		spec.TableSchema = &types.TableTransport{TableName: target.Table, Columns: schema}
	}

	job, err := ctx.Client.CreatePushJob(goCtx, target.PoolID, spec)
	if err != nil {
		return fmt.Errorf("failed to create push job for table %s: %w", target.Table, err)
	}

	defer func() {
		// the caller's context may already be cancelled
		cleanupCtx := context.WithoutCancel(goCtx)
		if derr := ctx.Client.DeletePushJob(cleanupCtx, target.PoolID, job.ID); derr != nil {
			slog.Error("failed to delete push job", "poolId", target.PoolID, "jobId", job.ID, "error", derr)
			if err == nil {
				err = fmt.Errorf("failed to delete push job %s: %w", job.ID, derr)
			}
			return
		}
		slog.Debug("deleted push job", "poolId", target.PoolID, "jobId", job.ID)
	}()

	op := operation.BulkPushExecution{
		PoolID:      target.PoolID,
		PushJobID:   job.ID,
		TargetTable: target.Table,
		Keys:        target.Keys,
	}
	if err := fill(op); err != nil {
		return err
	}

	run, err := ctx.Controller.Execute(goCtx, op, true)
	if done != nil && run != nil {
		done(run)
	}
	return err
}
