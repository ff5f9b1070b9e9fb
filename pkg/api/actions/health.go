package actions

import (
	"context"
	"fmt"
	"log/slog"
)

// Health checks that the platform is reachable and the token can read the pool
func Health(goCtx context.Context, ctx *Context) error {
	slog.Debug("checking platform access", "endpoint", ctx.Client.BaseURL(), "poolId", ctx.PoolID)

	if ctx.PoolID == "" {
		return fmt.Errorf("no pool configured")
	}

	tables, err := ctx.Client.ListTables(goCtx, ctx.PoolID)
	if err != nil {
		slog.Warn("platform unreachable", "endpoint", ctx.Client.BaseURL(), "poolId", ctx.PoolID, "error", err)
		return fmt.Errorf("failed to access pool %s: %w", ctx.PoolID, err)
	}

	slog.Debug("platform healthy", "endpoint", ctx.Client.BaseURL(), "poolId", ctx.PoolID, "tables", len(tables))
	return nil
}
