package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/poll"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// API is the subset of the platform client the controller drives
type API interface {
	JobStatus(ctx context.Context, poolID, jobID string) (*types.EntityStatus, error)
	ExecuteJob(ctx context.Context, poolID, jobID string, config types.JobExecutionConfiguration) error
	CancelJob(ctx context.Context, poolID, jobID string) error
	JobExecutions(ctx context.Context, poolID, jobID string) (*types.ExecutionItemPage, error)
	TaskExecutions(ctx context.Context, poolID, executionID, jobID string) ([]types.ExecutionItem, error)
	ExecutionLogDetail(ctx context.Context, poolID, executionID, id string, typ types.ExecutionType) (*types.LogMessagePage, error)

	LoadInfo(ctx context.Context, poolID, modelID string) (*types.DataModelLoadSync, error)
	Reload(ctx context.Context, poolID, modelID string, forceComplete bool) error
	PartialReload(ctx context.Context, poolID, modelID string, tableIDs []string) error
	CancelReload(ctx context.Context, poolID, modelID string) error

	GetPushJob(ctx context.Context, poolID, jobID string) (*types.DataPushJob, error)
	ExecutePushJob(ctx context.Context, poolID, jobID string) error
	DeletePushJob(ctx context.Context, poolID, jobID string) error
}

// Controller runs the verify → trigger → await → verify lifecycle of remote
// operations. It keeps no per-operation state and may be shared across goroutines.
type Controller struct {
	api      API
	pollSpec poll.Spec
	pollOpts []poll.Option
	logger   *slog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithPollSpec sets the backoff used by Execute
func WithPollSpec(spec poll.Spec) Option {
	return func(c *Controller) { c.pollSpec = spec }
}

// WithPollOptions passes options to every poll loop (e.g. poll.WithSleeper in tests)
func WithPollOptions(opts ...poll.Option) Option {
	return func(c *Controller) { c.pollOpts = append(c.pollOpts, opts...) }
}

// WithLogger sets the controller logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller on top of api
func NewController(api API, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		pollSpec: poll.DefaultSpec(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PollSpec returns the backoff used by Execute
func (c *Controller) PollSpec() poll.Spec {
	return c.pollSpec
}

// Status fetches the current status of op. Nothing is cached between calls.
func (c *Controller) Status(ctx context.Context, op Operation) (Snapshot, error) {
	switch o := op.(type) {
	case PipelineExecution:
		status, err := c.api.JobStatus(ctx, o.PoolID, o.JobID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{
			Status: types.FromExecution(status.Status),
			Raw:    string(status.Status),
			Exists: true,
		}, nil

	case ModelReload:
		info, err := c.api.LoadInfo(ctx, o.PoolID, o.ModelID)
		if err != nil {
			return Snapshot{}, err
		}
		load := info.CurrentLoad()
		if load == nil {
			return Snapshot{Status: types.StatusNotStarted}, nil
		}
		return Snapshot{
			Status:  types.FromLoad(load.LoadStatus),
			Raw:     string(load.LoadStatus),
			Message: load.Message,
			Exists:  true,
		}, nil

	case BulkPushExecution:
		job, err := c.api.GetPushJob(ctx, o.PoolID, o.PushJobID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{
			Status: types.FromPush(job.Status),
			Raw:    string(job.Status),
			Logs:   job.Logs,
			Exists: true,
		}, nil

	case nil:
		return Snapshot{}, apierr.InvalidConfig("operation is required")
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
}

// VerifyNotInProgress fails with an AlreadyRunning error when op is in progress.
// This is an advisory precondition; it does not lock against concurrent callers.
func (c *Controller) VerifyNotInProgress(ctx context.Context, op Operation) error {
	snap, err := c.Status(ctx, op)
	if err != nil {
		return err
	}
	if inProgress(op, snap) {
		return &apierr.Error{
			Kind:      apierr.KindAlreadyRunning,
			Operation: op.Kind().String(),
			PoolID:    op.Pool(),
			JobID:     op.ID(),
			Status:    snap.Raw,
			Message:   alreadyRunningMessage(op),
		}
	}
	return nil
}

func alreadyRunningMessage(op Operation) string {
	switch op.(type) {
	case PipelineExecution:
		return "data job execution is already in progress"
	case ModelReload:
		return "data model load is already in progress"
	case BulkPushExecution:
		return "push job was already submitted"
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
}

// Trigger sends the remote start call and returns the triggered run
func (c *Controller) Trigger(ctx context.Context, op Operation) (*Run, error) {
	var err error
	switch o := op.(type) {
	case PipelineExecution:
		err = c.api.ExecuteJob(ctx, o.PoolID, o.JobID, o.configuration())
	case ModelReload:
		if o.Partial() {
			err = c.api.PartialReload(ctx, o.PoolID, o.ModelID, o.TableIDs)
		} else {
			err = c.api.Reload(ctx, o.PoolID, o.ModelID, o.ForceComplete)
		}
	case BulkPushExecution:
		err = c.api.ExecutePushJob(ctx, o.PoolID, o.PushJobID)
	case nil:
		return nil, apierr.InvalidConfig("operation is required")
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to trigger %s %s in pool %s: %w", op.Kind(), op.ID(), op.Pool(), err)
	}

	run := newRun(op)
	if err := run.advance(StateTriggered); err != nil {
		return nil, err
	}
	c.logger.Info("triggered operation", "kind", op.Kind().String(), "poolId", op.Pool(), "id", op.ID())
	return run, nil
}

// AwaitCompletion polls until the run reaches a terminal status for its kind.
// It blocks for the whole duration; ctx is honored between polls.
func (c *Controller) AwaitCompletion(ctx context.Context, run *Run, spec poll.Spec) error {
	op := run.Operation()
	c.logger.Info("waiting for operation", "kind", op.Kind().String(), "poolId", op.Pool(), "id", op.ID())

	err := poll.Until(ctx, spec,
		func(ctx context.Context) (Snapshot, error) {
			snap, err := c.Status(ctx, op)
			if err == nil {
				run.observe(snap)
			}
			return snap, err
		},
		func(s Snapshot) bool { return terminal(op, s) },
		Snapshot.Describe,
		c.pollOpts...,
	)
	if err != nil {
		return fmt.Errorf("failed waiting for %s %s in pool %s: %w", op.Kind(), op.ID(), op.Pool(), err)
	}
	return nil
}

// VerifySuccessful re-fetches the final status and fails with an
// OperationFailed error unless it is a success-class status.
func (c *Controller) VerifySuccessful(ctx context.Context, run *Run) error {
	op := run.Operation()
	snap, err := c.Status(ctx, op)
	if err != nil {
		return err
	}
	run.observe(snap)

	if succeeded(op, snap) {
		if snap.Status == types.StatusWarning {
			c.logger.Warn("operation finished with warning",
				"kind", op.Kind().String(),
				"poolId", op.Pool(),
				"id", op.ID(),
				"message", snap.Message)
		}
		return run.advance(StateSucceeded)
	}

	final := StateFailed
	if snap.Status == types.StatusCancelled {
		final = StateCancelled
	}
	if err := run.advance(final); err != nil {
		return err
	}

	failure := &apierr.Error{
		Kind:      apierr.KindOperationFailed,
		Operation: op.Kind().String(),
		PoolID:    op.Pool(),
		JobID:     op.ID(),
		Status:    snap.Raw,
	}
	switch o := op.(type) {
	case PipelineExecution:
		logs, err := c.failedTaskLogs(ctx, o)
		if err != nil {
			failure.Err = err
		}
		failure.Message = joinOr(logs, snap.Raw)
	case ModelReload:
		failure.Message = snap.Message
	case BulkPushExecution:
		failure.Message = joinOr(snap.Logs, snap.Raw)
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
	return failure
}

func joinOr(lines []string, fallback string) string {
	if msg := strings.Join(lines, "\n"); msg != "" {
		return msg
	}
	return fallback
}

// failedTaskLogs collects the first detailed log message of every failed task
// of the latest execution of a data job
func (c *Controller) failedTaskLogs(ctx context.Context, op PipelineExecution) ([]string, error) {
	page, err := c.api.JobExecutions(ctx, op.PoolID, op.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	if len(page.ExecutionItems) == 0 {
		return nil, nil
	}
	latest := page.ExecutionItems[0]

	tasks, err := c.api.TaskExecutions(ctx, op.PoolID, latest.ExecutionID, latest.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task executions: %w", err)
	}

	var logs []string
	for _, task := range tasks {
		if task.Status != types.ExecutionStatusFail {
			continue
		}
		detail, err := c.api.ExecutionLogDetail(ctx, op.PoolID, task.ExecutionID, task.TaskID, task.Type)
		if err != nil {
			return logs, fmt.Errorf("failed to fetch log of task %s: %w", task.TaskID, err)
		}
		if len(detail.LogMessages) == 0 {
			continue
		}
		if msg := detail.LogMessages[0].LogMessage; msg != "" {
			logs = append(logs, msg)
		}
	}
	return logs, nil
}

// Execute runs VerifyNotInProgress and Trigger, then, if wait is set,
// AwaitCompletion with the controller's poll spec and VerifySuccessful.
// Without wait it returns right after the trigger with no outcome.
func (c *Controller) Execute(ctx context.Context, op Operation, wait bool) (*Run, error) {
	if err := c.VerifyNotInProgress(ctx, op); err != nil {
		return nil, err
	}
	run, err := c.Trigger(ctx, op)
	if err != nil {
		return nil, err
	}
	if !wait {
		return run, nil
	}
	if err := c.AwaitCompletion(ctx, run, c.pollSpec); err != nil {
		return run, err
	}
	if err := c.VerifySuccessful(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// Cancel asks the platform to stop op. Push jobs are cancelled by deleting them.
// run may be nil when cancelling an operation triggered elsewhere.
func (c *Controller) Cancel(ctx context.Context, op Operation, run *Run) error {
	var err error
	switch o := op.(type) {
	case PipelineExecution:
		err = c.api.CancelJob(ctx, o.PoolID, o.JobID)
	case ModelReload:
		err = c.api.CancelReload(ctx, o.PoolID, o.ModelID)
	case BulkPushExecution:
		err = c.api.DeletePushJob(ctx, o.PoolID, o.PushJobID)
	case nil:
		return apierr.InvalidConfig("operation is required")
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
	if err != nil {
		return fmt.Errorf("failed to cancel %s %s in pool %s: %w", op.Kind(), op.ID(), op.Pool(), err)
	}

	c.logger.Info("cancelled operation", "kind", op.Kind().String(), "poolId", op.Pool(), "id", op.ID())
	if run != nil && !run.State().Terminal() {
		if err := run.advance(StateCancelled); err != nil && !errors.Is(err, errRunFinished) {
			return err
		}
	}
	return nil
}
