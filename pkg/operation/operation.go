package operation

import (
	"fmt"
	"strings"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// Kind names an operation variant
type Kind int

const (
	KindPipeline Kind = iota + 1
	KindReload
	KindPush
)

func (k Kind) String() string {
	switch k {
	case KindPipeline:
		return "pipeline execution"
	case KindReload:
		return "model reload"
	case KindPush:
		return "bulk push execution"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

// Operation is one remote long-running job. The variant set is closed:
// PipelineExecution, ModelReload and BulkPushExecution.
type Operation interface {
	Kind() Kind
	Pool() string
	ID() string
	sealed()
}

// PipelineExecution runs a data job. Nil subsets run everything.
type PipelineExecution struct {
	PoolID          string
	JobID           string
	Transformations []string
	Extractions     []types.ExtractionConfiguration
	DataModels      []types.DataModelExecutionConfiguration
	Mode            types.ExtractionMode // DELTA when empty
}

func (PipelineExecution) Kind() Kind     { return KindPipeline }
func (p PipelineExecution) Pool() string { return p.PoolID }
func (p PipelineExecution) ID() string   { return p.JobID }
func (PipelineExecution) sealed()        {}

// configuration builds the execute payload. A subset flag is set when its list was given.
func (p PipelineExecution) configuration() types.JobExecutionConfiguration {
	mode := p.Mode
	if mode == "" {
		mode = types.ExtractionModeDelta
	}
	config := types.JobExecutionConfiguration{
		PoolID:                             p.PoolID,
		JobID:                              p.JobID,
		Mode:                               mode,
		ExecuteOnlySubsetOfTransformations: p.Transformations != nil,
		Transformations:                    p.Transformations,
		ExecuteOnlySubsetOfExtractions:     p.Extractions != nil,
		Extractions:                        p.Extractions,
		LoadOnlySubsetOfDataModels:         p.DataModels != nil,
		DataModels:                         p.DataModels,
	}
	if config.Transformations == nil {
		config.Transformations = []string{}
	}
	if config.Extractions == nil {
		config.Extractions = []types.ExtractionConfiguration{}
	}
	if config.DataModels == nil {
		config.DataModels = []types.DataModelExecutionConfiguration{}
	}
	return config
}

// ModelReload reloads a data model. A non-nil TableIDs triggers a partial reload.
type ModelReload struct {
	PoolID        string
	ModelID       string
	TableIDs      []string
	ForceComplete bool // full reloads only; false reloads from cache
}

func (ModelReload) Kind() Kind     { return KindReload }
func (m ModelReload) Pool() string { return m.PoolID }
func (m ModelReload) ID() string   { return m.ModelID }
func (ModelReload) sealed()        {}

// Partial reports whether only a subset of tables is reloaded
func (m ModelReload) Partial() bool {
	return m.TableIDs != nil
}

// BulkPushExecution processes the chunks of an existing data push job
type BulkPushExecution struct {
	PoolID      string
	PushJobID   string
	TargetTable string
	Keys        []string
}

func (BulkPushExecution) Kind() Kind     { return KindPush }
func (b BulkPushExecution) Pool() string { return b.PoolID }
func (b BulkPushExecution) ID() string   { return b.PushJobID }
func (BulkPushExecution) sealed()        {}

// Snapshot is one fetched status of an operation. It is never cached.
type Snapshot struct {
	Status  types.OperationStatus
	Raw     string   // status name as reported by the platform
	Message string   // remote message, if any
	Logs    []string // remote job logs (push jobs only)
	Exists  bool     // false when the platform reports no status yet (e.g. a never-loaded model)
}

// Describe renders the snapshot for progress reporting
func (s Snapshot) Describe() string {
	if !s.Exists {
		return "Status: none"
	}
	var sb strings.Builder
	sb.WriteString("Status:")
	if s.Raw != "" {
		sb.WriteString(" ")
		sb.WriteString(s.Raw)
	}
	if s.Message != "" {
		sb.WriteString(" ")
		sb.WriteString(s.Message)
	}
	return sb.String()
}

// inProgress reports whether a fetched status blocks a new trigger
func inProgress(op Operation, s Snapshot) bool {
	switch op.(type) {
	case PipelineExecution:
		return s.Status == types.StatusQueued || s.Status == types.StatusRunning
	case ModelReload:
		return s.Exists && (s.Status == types.StatusRunning ||
			s.Status == types.StatusLostConnection ||
			s.Status == types.StatusCancelling)
	case BulkPushExecution:
		// only a NEW push job may be submitted
		return s.Raw != string(types.PushJobStatusNew)
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
}

// terminal reports whether polling can stop
func terminal(op Operation, s Snapshot) bool {
	switch op.(type) {
	case PipelineExecution, ModelReload:
		return !inProgress(op, s)
	case BulkPushExecution:
		return s.Status == types.StatusSuccess ||
			s.Status == types.StatusFailure ||
			s.Status == types.StatusCancelled
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
}

// succeeded reports whether a terminal status counts as success
func succeeded(op Operation, s Snapshot) bool {
	switch op.(type) {
	case PipelineExecution:
		return s.Status == types.StatusSuccess
	case ModelReload:
		return !s.Exists || s.Status == types.StatusSuccess || s.Status == types.StatusWarning
	case BulkPushExecution:
		return s.Status == types.StatusSuccess
	default:
		panic(fmt.Sprintf("unknown operation type %T", op))
	}
}
