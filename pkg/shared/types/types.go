package types

import "time"

// ExecutionStatus is the status of a data job, task or step execution
type ExecutionStatus string

const (
	ExecutionStatusQueued  ExecutionStatus = "QUEUED"
	ExecutionStatusRunning ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusCancel  ExecutionStatus = "CANCEL"
	ExecutionStatusFail    ExecutionStatus = "FAIL"
	ExecutionStatusSkipped ExecutionStatus = "SKIPPED"
)

// ExecutionType identifies the level of an execution log item
type ExecutionType string

const (
	ExecutionTypeSchedule ExecutionType = "SCHEDULE"
	ExecutionTypeJob      ExecutionType = "JOB"
	ExecutionTypeTask     ExecutionType = "TASK"
	ExecutionTypeStep     ExecutionType = "STEP"
)

// ExtractionMode selects full or delta extraction for a data job run
type ExtractionMode string

const (
	ExtractionModeFull  ExtractionMode = "FULL"
	ExtractionModeDelta ExtractionMode = "DELTA"
)

// DataModelLoadStatus is the status of a data model load
type DataModelLoadStatus string

const (
	LoadStatusRunning        DataModelLoadStatus = "RUNNING"
	LoadStatusSuccess        DataModelLoadStatus = "SUCCESS"
	LoadStatusError          DataModelLoadStatus = "ERROR"
	LoadStatusWarning        DataModelLoadStatus = "WARNING"
	LoadStatusLostConnection DataModelLoadStatus = "LOST_CONNECTION"
	LoadStatusCanceled       DataModelLoadStatus = "CANCELED"
	LoadStatusCancelling     DataModelLoadStatus = "CANCELLING"
)

// PushJobStatus is the status of a data push job
type PushJobStatus string

const (
	PushJobStatusNew      PushJobStatus = "NEW"
	PushJobStatusQueued   PushJobStatus = "QUEUED"
	PushJobStatusRunning  PushJobStatus = "RUNNING"
	PushJobStatusDone     PushJobStatus = "DONE"
	PushJobStatusError    PushJobStatus = "ERROR"
	PushJobStatusCanceled PushJobStatus = "CANCELED"
)

// PushJobType selects whether pushed chunks replace or merge into the target table
type PushJobType string

const (
	PushJobTypeReplace PushJobType = "REPLACE"
	PushJobTypeDelta   PushJobType = "DELTA"
)

// UploadFileType is the format of pushed chunks
type UploadFileType string

const (
	UploadFileTypeParquet UploadFileType = "PARQUET"
	UploadFileTypeCSV     UploadFileType = "CSV"
)

// ChunkType distinguishes upserted from deleted chunks
type ChunkType string

const (
	ChunkTypeUpsert ChunkType = "UPSERT"
	ChunkTypeDelete ChunkType = "DELETE"
)

// OperationStatus is the status of any remote operation, unified across kinds
type OperationStatus string

const (
	StatusNotStarted     OperationStatus = "NOT_STARTED"
	StatusQueued         OperationStatus = "QUEUED"
	StatusRunning        OperationStatus = "RUNNING"
	StatusSuccess        OperationStatus = "SUCCESS"
	StatusFailure        OperationStatus = "FAILURE"
	StatusCancelled      OperationStatus = "CANCELLED"
	StatusWarning        OperationStatus = "WARNING"
	StatusLostConnection OperationStatus = "LOST_CONNECTION"
	StatusCancelling     OperationStatus = "CANCELLING"
)

// FromExecution maps a data job execution status onto the unified set
func FromExecution(s ExecutionStatus) OperationStatus {
	switch s {
	case ExecutionStatusQueued:
		return StatusQueued
	case ExecutionStatusRunning:
		return StatusRunning
	case ExecutionStatusSuccess:
		return StatusSuccess
	case ExecutionStatusCancel, ExecutionStatusSkipped:
		return StatusCancelled
	case ExecutionStatusFail:
		return StatusFailure
	case "":
		return StatusNotStarted
	default:
		return StatusFailure
	}
}

// FromLoad maps a data model load status onto the unified set
func FromLoad(s DataModelLoadStatus) OperationStatus {
	switch s {
	case LoadStatusRunning:
		return StatusRunning
	case LoadStatusSuccess:
		return StatusSuccess
	case LoadStatusWarning:
		return StatusWarning
	case LoadStatusLostConnection:
		return StatusLostConnection
	case LoadStatusCancelling:
		return StatusCancelling
	case LoadStatusCanceled:
		return StatusCancelled
	case "":
		return StatusNotStarted
	default:
		return StatusFailure
	}
}

// FromPush maps a data push job status onto the unified set
func FromPush(s PushJobStatus) OperationStatus {
	switch s {
	case PushJobStatusNew, "":
		return StatusNotStarted
	case PushJobStatusQueued:
		return StatusQueued
	case PushJobStatusRunning:
		return StatusRunning
	case PushJobStatusDone:
		return StatusSuccess
	case PushJobStatusCanceled:
		return StatusCancelled
	default:
		return StatusFailure
	}
}

// EntityStatus is one entry of the pool-wide execution status listing
type EntityStatus struct {
	ID                     string          `json:"id"`
	Status                 ExecutionStatus `json:"status,omitempty"`
	LastExecutionStartDate *time.Time      `json:"lastExecutionStartDate,omitempty"`
}

// ExecutionItem is a job, task or step execution log entry
type ExecutionItem struct {
	ID             string          `json:"id"`
	PoolID         string          `json:"poolId,omitempty"`
	ExecutionID    string          `json:"executionId,omitempty"`
	JobID          string          `json:"jobId,omitempty"`
	TaskID         string          `json:"taskId,omitempty"`
	StepID         string          `json:"stepId,omitempty"`
	Name           string          `json:"name,omitempty"`
	Status         ExecutionStatus `json:"status,omitempty"`
	Type           ExecutionType   `json:"type,omitempty"`
	Mode           ExtractionMode  `json:"mode,omitempty"`
	StartDate      *time.Time      `json:"startDate,omitempty"`
	EndDate        *time.Time      `json:"endDate,omitempty"`
	ExecutionOrder int             `json:"executionOrder,omitempty"`
}

// ExecutionItemPage is a page of job executions, newest first
type ExecutionItemPage struct {
	ExecutionItems []ExecutionItem `json:"executionItems"`
	NumOfPages     int             `json:"numOfPages"`
}

// LogMessage is a single detailed execution log line
type LogMessage struct {
	ID              string     `json:"id,omitempty"`
	ExecutionItemID string     `json:"executionItemId,omitempty"`
	Level           string     `json:"level,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
	LogMessage      string     `json:"logMessage,omitempty"`
}

// LogMessagePage is a page of detailed log messages
type LogMessagePage struct {
	LogMessages []LogMessage `json:"logMessages"`
	NumOfPages  int          `json:"numOfPages"`
}

// ExtractionConfiguration restricts a run to one extraction and optionally some of its tables
type ExtractionConfiguration struct {
	ExtractionID           string   `json:"extractionId"`
	LoadOnlySubsetOfTables bool     `json:"loadOnlySubsetOfTables"`
	Tables                 []string `json:"tables"`
}

// DataModelExecutionConfiguration restricts a run to one data model execution
type DataModelExecutionConfiguration struct {
	DataModelExecutionID string   `json:"dataModelExecutionId"`
	Tables               []string `json:"tables"`
}

// JobExecutionConfiguration is the body of a data job execute call
type JobExecutionConfiguration struct {
	PoolID                             string                            `json:"poolId"`
	JobID                              string                            `json:"jobId"`
	Mode                               ExtractionMode                    `json:"mode"`
	ExecuteOnlySubsetOfTransformations bool                              `json:"executeOnlySubsetOfTransformations"`
	Transformations                    []string                          `json:"transformations"`
	ExecuteOnlySubsetOfExtractions     bool                              `json:"executeOnlySubsetOfExtractions"`
	Extractions                        []ExtractionConfiguration         `json:"extractions"`
	LoadOnlySubsetOfDataModels         bool                              `json:"loadOnlySubsetOfDataModels"`
	DataModels                         []DataModelExecutionConfiguration `json:"dataModels"`
}

// DataModelLoad is the current compute load of a data model
type DataModelLoad struct {
	DataLoadID  string              `json:"dataLoadId,omitempty"`
	DataModelID string              `json:"dataModelId,omitempty"`
	StartDate   *time.Time          `json:"startDate,omitempty"`
	EndDate     *time.Time          `json:"endDate,omitempty"`
	LoadStatus  DataModelLoadStatus `json:"loadStatus,omitempty"`
	Message     string              `json:"message,omitempty"`
	LoadType    string              `json:"loadType,omitempty"`
}

// DataModelLoadInfo wraps the current compute load
type DataModelLoadInfo struct {
	CurrentComputeLoad *DataModelLoad `json:"currentComputeLoad,omitempty"`
}

// DataModelLoadSync is the response of the load-info-sync endpoint
type DataModelLoadSync struct {
	LoadInfo *DataModelLoadInfo `json:"loadInfo,omitempty"`
}

// CurrentLoad returns the current compute load, or nil if the model was never loaded
func (s *DataModelLoadSync) CurrentLoad() *DataModelLoad {
	if s == nil || s.LoadInfo == nil {
		return nil
	}
	return s.LoadInfo.CurrentComputeLoad
}

// ColumnType is the declared type of a pushed column
type ColumnType string

const (
	ColumnTypeInteger  ColumnType = "INTEGER"
	ColumnTypeDate     ColumnType = "DATE"
	ColumnTypeTime     ColumnType = "TIME"
	ColumnTypeDatetime ColumnType = "DATETIME"
	ColumnTypeFloat    ColumnType = "FLOAT"
	ColumnTypeBoolean  ColumnType = "BOOLEAN"
	ColumnTypeString   ColumnType = "STRING"
)

// ColumnTransport describes a column of a pushed table schema
type ColumnTransport struct {
	ColumnName  string     `json:"columnName"`
	ColumnType  ColumnType `json:"columnType"`
	FieldLength int        `json:"fieldLength,omitempty"`
	Decimals    int        `json:"decimals,omitempty"`
	PKField     bool       `json:"pkField,omitempty"`
}

// TableTransport is an explicit schema for a push job's target table
type TableTransport struct {
	TableName string            `json:"tableName"`
	Columns   []ColumnTransport `json:"columns"`
}

// DataPushJob is a bulk data push job
type DataPushJob struct {
	ID                    string          `json:"id,omitempty"`
	TargetName            string          `json:"targetName"`
	DataPoolID            string          `json:"dataPoolId,omitempty"`
	Status                PushJobStatus   `json:"status,omitempty"`
	Type                  PushJobType     `json:"type,omitempty"`
	FileType              UploadFileType  `json:"fileType,omitempty"`
	ConnectionID          string          `json:"connectionId,omitempty"`
	UpsertStrategy        string          `json:"upsertStrategy,omitempty"`
	FallbackVarcharLength int             `json:"fallbackVarcharLength,omitempty"`
	AllowDuplicate        bool            `json:"allowDuplicate,omitempty"`
	Keys                  []string        `json:"keys,omitempty"`
	Logs                  []string        `json:"logs,omitempty"`
	TableSchema           *TableTransport `json:"tableSchema,omitempty"`
	LastModified          *time.Time      `json:"lastModified,omitempty"`
}

// DataPushChunk is a chunk registered with a push job
type DataPushChunk struct {
	ID           string     `json:"id"`
	CreationDate *time.Time `json:"creationDate,omitempty"`
	Type         ChunkType  `json:"type,omitempty"`
	PushJobID    string     `json:"pushJobId,omitempty"`
	Checksum     string     `json:"checksum,omitempty"`
}

// PoolColumn is a column of a table in a data pool
type PoolColumn struct {
	Name   string `json:"name"`
	Length int    `json:"length,omitempty"`
	Type   string `json:"type,omitempty"`
}

// PoolTable is a table in a data pool
type PoolTable struct {
	Name           string       `json:"name"`
	LoaderSource   string       `json:"loaderSource,omitempty"`
	Available      bool         `json:"available,omitempty"`
	DataSourceID   string       `json:"dataSourceId,omitempty"`
	DataSourceName string       `json:"dataSourceName,omitempty"`
	SchemaName     string       `json:"schemaName,omitempty"`
	Type           string       `json:"type,omitempty"`
	Columns        []PoolColumn `json:"columns,omitempty"`
}

// ErrorResponse is the error body returned by the platform
type ErrorResponse struct {
	Message      string `json:"message"`
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

// Text returns the most specific message in the body
func (e ErrorResponse) Text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return e.Error
	}
}
