package actions

import (
	"context"
	"log/slog"

	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
)

// ExecutePipeline runs a data job. The pool defaults to the context pool.
func ExecutePipeline(goCtx context.Context, ctx *Context, op operation.PipelineExecution, wait bool) (*operation.Run, error) {
	op.PoolID = ctx.pool(op.PoolID)
	slog.Debug("executing data job", "poolId", op.PoolID, "jobId", op.JobID, "wait", wait)
	return ctx.Controller.Execute(goCtx, op, wait)
}

// ReloadModel reloads a data model, fully or for the given tables only
func ReloadModel(goCtx context.Context, ctx *Context, op operation.ModelReload, wait bool) (*operation.Run, error) {
	op.PoolID = ctx.pool(op.PoolID)
	slog.Debug("reloading data model", "poolId", op.PoolID, "modelId", op.ModelID, "partial", op.Partial(), "wait", wait)
	return ctx.Controller.Execute(goCtx, op, wait)
}

// Cancel stops a running operation on the platform
func Cancel(goCtx context.Context, ctx *Context, op operation.Operation) error {
	switch o := op.(type) {
	case operation.PipelineExecution:
		o.PoolID = ctx.pool(o.PoolID)
		op = o
	case operation.ModelReload:
		o.PoolID = ctx.pool(o.PoolID)
		op = o
	case operation.BulkPushExecution:
		o.PoolID = ctx.pool(o.PoolID)
		op = o
	}
	return ctx.Controller.Cancel(goCtx, op, nil)
}
