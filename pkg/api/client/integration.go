package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// ExecutionStatuses returns the latest execution status of every data job in the pool
func (c *Client) ExecutionStatuses(ctx context.Context, poolID string) ([]types.EntityStatus, error) {
	var statuses []types.EntityStatus
	path := escape("/integration/api/pools/%s/logs/status", poolID)
	if err := c.Invoke(ctx, http.MethodGet, path, nil, nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// JobStatus returns the latest execution status of a single data job
func (c *Client) JobStatus(ctx context.Context, poolID, jobID string) (*types.EntityStatus, error) {
	statuses, err := c.ExecutionStatuses(ctx, poolID)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].ID == jobID {
			return &statuses[i], nil
		}
	}
	return nil, &apierr.Error{
		Kind:      apierr.KindNotFound,
		Operation: "job status",
		PoolID:    poolID,
		JobID:     jobID,
		Message:   "no execution status logs found for job",
	}
}

// ExecuteJob starts a data job execution
func (c *Client) ExecuteJob(ctx context.Context, poolID, jobID string, config types.JobExecutionConfiguration) error {
	path := escape("/integration/api/pools/%s/jobs/%s/execute", poolID, jobID)
	return c.Invoke(ctx, http.MethodPost, path, nil, config, nil)
}

// CancelJob cancels the running execution of a data job
func (c *Client) CancelJob(ctx context.Context, poolID, jobID string) error {
	path := escape("/integration/api/pools/%s/jobs/%s/cancel", poolID, jobID)
	return c.Invoke(ctx, http.MethodPost, path, nil, nil, nil)
}

// JobExecutions returns the executions of a data job, most recent first
func (c *Client) JobExecutions(ctx context.Context, poolID, jobID string) (*types.ExecutionItemPage, error) {
	var page types.ExecutionItemPage
	path := escape("/integration/api/pools/%s/logs/%s/executions", poolID, jobID)
	if err := c.Invoke(ctx, http.MethodGet, path, nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TaskExecutions returns the task executions of one job execution
func (c *Client) TaskExecutions(ctx context.Context, poolID, executionID, jobID string) ([]types.ExecutionItem, error) {
	query := url.Values{}
	query.Set("executionId", executionID)
	query.Set("type", string(types.ExecutionTypeTask))
	query.Set("id", jobID)

	var items []types.ExecutionItem
	path := escape("/integration/api/pools/%s/logs/executions", poolID)
	if err := c.Invoke(ctx, http.MethodGet, path, query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ExecutionLogDetail returns the detailed log messages of one execution item
func (c *Client) ExecutionLogDetail(ctx context.Context, poolID, executionID, id string, typ types.ExecutionType) (*types.LogMessagePage, error) {
	query := url.Values{}
	query.Set("executionId", executionID)
	query.Set("id", id)
	if typ != "" {
		query.Set("type", string(typ))
	}

	var page types.LogMessagePage
	path := escape("/integration/api/pools/%s/logs/executions/detail", poolID)
	if err := c.Invoke(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// LoadInfo returns the load information of a data model
func (c *Client) LoadInfo(ctx context.Context, poolID, modelID string) (*types.DataModelLoadSync, error) {
	var info types.DataModelLoadSync
	path := escape("/integration/api/pools/%s/data-models/%s/load-history/load-info-sync", poolID, modelID)
	if err := c.Invoke(ctx, http.MethodGet, path, nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Reload triggers a full data model reload. forceComplete=false reloads from cache.
func (c *Client) Reload(ctx context.Context, poolID, modelID string, forceComplete bool) error {
	query := url.Values{}
	query.Set("forceComplete", strconv.FormatBool(forceComplete))
	path := escape("/integration/api/pools/%s/data-models/%s/reload", poolID, modelID)
	return c.Invoke(ctx, http.MethodPost, path, query, nil, nil)
}

// PartialReload triggers a reload of the given data model tables
func (c *Client) PartialReload(ctx context.Context, poolID, modelID string, tableIDs []string) error {
	if tableIDs == nil {
		tableIDs = []string{}
	}
	path := escape("/integration/api/v1/data-pools/%s/data-models/%s/load/partial-sync", poolID, modelID)
	return c.Invoke(ctx, http.MethodPost, path, nil, tableIDs, nil)
}

// CancelReload cancels the running load of a data model
func (c *Client) CancelReload(ctx context.Context, poolID, modelID string) error {
	path := escape("/integration/api/pools/%s/data-models/%s/cancel", poolID, modelID)
	return c.Invoke(ctx, http.MethodPost, path, nil, nil, nil)
}

// ListTables returns the tables of a data pool
func (c *Client) ListTables(ctx context.Context, poolID string) ([]types.PoolTable, error) {
	var tables []types.PoolTable
	path := escape("/integration/api/pools/%s/tables", poolID)
	if err := c.Invoke(ctx, http.MethodGet, path, nil, nil, &tables); err != nil {
		return nil, fmt.Errorf("failed to list tables of pool %s: %w", poolID, err)
	}
	return tables, nil
}
