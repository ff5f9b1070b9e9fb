// Package emstest provides an in-memory fake of the platform REST API for tests.
package emstest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// DefaultToken is the API token accepted by a new Server
const DefaultToken = "test-token"

// Route names, usable with Calls and Fail
const (
	RouteJobStatus      = "job-status"
	RouteJobExecute     = "job-execute"
	RouteJobCancel      = "job-cancel"
	RouteJobExecutions  = "job-executions"
	RouteTaskExecutions = "task-executions"
	RouteLogDetail      = "log-detail"
	RouteLoadInfo       = "load-info"
	RouteReload         = "reload"
	RoutePartialReload  = "partial-reload"
	RouteReloadCancel   = "reload-cancel"
	RouteTables         = "tables"
	RoutePushCreate     = "push-create"
	RoutePushList       = "push-list"
	RoutePushGet        = "push-get"
	RoutePushExecute    = "push-execute"
	RoutePushDelete     = "push-delete"
	RouteChunkUpsert    = "chunk-upsert"
	RouteChunkDelete    = "chunk-delete"
	RouteChunkList      = "chunk-list"
)

// Chunk is a chunk body received by the server, in arrival order
type Chunk struct {
	PoolID string
	JobID  string
	Type   types.ChunkType
	Data   []byte
}

type pipelineJob struct {
	status     types.ExecutionStatus
	script     []types.ExecutionStatus
	executions []types.ExecutionItem
	failedLogs []string
	configs    []types.JobExecutionConfiguration
	cancelled  bool
}

type dataModel struct {
	load          *types.DataModelLoad
	script        []types.DataModelLoadStatus
	message       string
	forceComplete []bool
	partial       [][]string
	cancelled     bool
}

type pushJob struct {
	job      types.DataPushJob
	script   []types.PushJobStatus
	executed bool
	chunks   []types.DataPushChunk
}

// Server is a fake platform backed by in-memory state
type Server struct {
	*httptest.Server
	Token string

	mu         sync.Mutex
	jobs       map[string]*pipelineJob
	models     map[string]*dataModel
	pushJobs   map[string]*pushJob
	deleted    map[string]types.DataPushJob
	pushScript []types.PushJobStatus
	pushLogs   []string
	tables     map[string][]types.PoolTable
	chunks     []Chunk
	calls      map[string]int
	faults     map[string][]int
}

// NewServer starts a fake platform. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		Token:    DefaultToken,
		jobs:     make(map[string]*pipelineJob),
		models:   make(map[string]*dataModel),
		pushJobs: make(map[string]*pushJob),
		deleted:  make(map[string]types.DataPushJob),
		tables:   make(map[string][]types.PoolTable),
		calls:    make(map[string]int),
		faults:   make(map[string][]int),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.authMiddleware)
	r.Use(s.countMiddleware)

	integration := r.PathPrefix("/integration/api/pools/{pool}").Subrouter()
	integration.HandleFunc("/logs/status", s.jobStatus).Methods("GET").Name(RouteJobStatus)
	integration.HandleFunc("/jobs/{job}/execute", s.executeJob).Methods("POST").Name(RouteJobExecute)
	integration.HandleFunc("/jobs/{job}/cancel", s.cancelJob).Methods("POST").Name(RouteJobCancel)
	integration.HandleFunc("/logs/executions/detail", s.logDetail).Methods("GET").Name(RouteLogDetail)
	integration.HandleFunc("/logs/executions", s.taskExecutions).Methods("GET").Name(RouteTaskExecutions)
	integration.HandleFunc("/logs/{job}/executions", s.jobExecutions).Methods("GET").Name(RouteJobExecutions)
	integration.HandleFunc("/data-models/{model}/load-history/load-info-sync", s.loadInfo).Methods("GET").Name(RouteLoadInfo)
	integration.HandleFunc("/data-models/{model}/reload", s.reload).Methods("POST").Name(RouteReload)
	integration.HandleFunc("/data-models/{model}/cancel", s.cancelReload).Methods("POST").Name(RouteReloadCancel)
	integration.HandleFunc("/tables", s.listTables).Methods("GET").Name(RouteTables)

	r.HandleFunc("/integration/api/v1/data-pools/{pool}/data-models/{model}/load/partial-sync", s.partialReload).
		Methods("POST").Name(RoutePartialReload)

	push := r.PathPrefix("/data-ingestion/api/v1/data-push/{pool}/jobs").Subrouter()
	push.HandleFunc("/", s.createPushJob).Methods("POST").Name(RoutePushCreate)
	push.HandleFunc("/", s.listPushJobs).Methods("GET").Name(RoutePushList)
	push.HandleFunc("/{job}", s.getPushJob).Methods("GET").Name(RoutePushGet)
	push.HandleFunc("/{job}", s.executePushJob).Methods("POST").Name(RoutePushExecute)
	push.HandleFunc("/{job}", s.deletePushJob).Methods("DELETE").Name(RoutePushDelete)
	push.HandleFunc("/{job}/chunks/upserted", s.upsertChunk).Methods("POST").Name(RouteChunkUpsert)
	push.HandleFunc("/{job}/chunks/deleted", s.deleteChunk).Methods("POST").Name(RouteChunkDelete)
	push.HandleFunc("/{job}/chunks", s.listChunks).Methods("GET").Name(RouteChunkList)

	return r
}

// authMiddleware accepts "AppKey <token>" and "Bearer <token>"
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || (parts[0] != "AppKey" && parts[0] != "Bearer") {
			errorResponse(w, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}
		if parts[1] != s.Token {
			errorResponse(w, http.StatusForbidden, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// countMiddleware counts calls per route and serves injected faults
func (s *Server) countMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		s.mu.Lock()
		s.calls[name]++
		var fault int
		if codes := s.faults[name]; len(codes) > 0 {
			fault = codes[0]
			s.faults[name] = codes[1:]
		}
		s.mu.Unlock()

		if fault != 0 {
			errorResponse(w, fault, http.StatusText(fault))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"message": message})
}

func key(pool, id string) string {
	return pool + "/" + id
}

// Calls returns how many requests the named route received
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests received on all routes
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Fail makes the next requests to route answer with the given status codes
func (s *Server) Fail(route string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], codes...)
}

// Chunks returns every chunk received, in arrival order
func (s *Server) Chunks() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// AddTable registers a table in a pool
func (s *Server) AddTable(pool, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[pool] = append(s.tables[pool], types.PoolTable{Name: name, Available: true, DataSourceName: "Global"})
}

// SetJobStatus registers a data job with its current status
func (s *Server) SetJobStatus(pool, job string, status types.ExecutionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job(pool, job).status = status
}

// ScriptJob sets the statuses returned after the job is executed, one per status call.
// The last status sticks.
func (s *Server) ScriptJob(pool, job string, statuses ...types.ExecutionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job(pool, job).script = append([]types.ExecutionStatus(nil), statuses...)
}

// FailTasks makes the next execution of job report one failed task per log message
func (s *Server) FailTasks(pool, job string, logs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job(pool, job).failedLogs = append([]string(nil), logs...)
}

// ExecutionConfigs returns the configurations the job was executed with
func (s *Server) ExecutionConfigs(pool, job string) []types.JobExecutionConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.JobExecutionConfiguration(nil), s.job(pool, job).configs...)
}

// JobCancelled reports whether the job received a cancel call
func (s *Server) JobCancelled(pool, job string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job(pool, job).cancelled
}

func (s *Server) job(pool, job string) *pipelineJob {
	k := key(pool, job)
	j, ok := s.jobs[k]
	if !ok {
		j = &pipelineJob{}
		s.jobs[k] = j
	}
	return j
}

// SetLoad sets the current load of a data model
func (s *Server) SetLoad(pool, model string, status types.DataModelLoadStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.model(pool, model)
	m.load = &types.DataModelLoad{DataModelID: model, DataLoadID: uuid.NewString(), LoadStatus: status, Message: message}
}

// ScriptLoad sets the load statuses returned after a reload is triggered.
// message is attached to every scripted load.
func (s *Server) ScriptLoad(pool, model, message string, statuses ...types.DataModelLoadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.model(pool, model)
	m.script = append([]types.DataModelLoadStatus(nil), statuses...)
	m.message = message
}

// Reloads returns the forceComplete flag of every full reload and the table ids of every partial one
func (s *Server) Reloads(pool, model string) ([]bool, [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.model(pool, model)
	return append([]bool(nil), m.forceComplete...), append([][]string(nil), m.partial...)
}

// ReloadCancelled reports whether the model received a cancel call
func (s *Server) ReloadCancelled(pool, model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model(pool, model).cancelled
}

func (s *Server) model(pool, model string) *dataModel {
	k := key(pool, model)
	m, ok := s.models[k]
	if !ok {
		m = &dataModel{}
		s.models[k] = m
	}
	return m
}

// ScriptPush sets the statuses push jobs go through after execution.
// Without a script an executed job is DONE.
func (s *Server) ScriptPush(statuses ...types.PushJobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushScript = append([]types.PushJobStatus(nil), statuses...)
}

// SetPushLogs sets the logs attached to push jobs once executed
func (s *Server) SetPushLogs(logs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLogs = append([]string(nil), logs...)
}

// PushJobs returns the live push jobs of a pool
func (s *Server) PushJobs(pool string) []types.DataPushJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.DataPushJob
	for k, j := range s.pushJobs {
		if strings.HasPrefix(k, pool+"/") {
			out = append(out, j.job)
		}
	}
	return out
}

// DeletedPushJobs returns the push jobs of a pool that were deleted
func (s *Server) DeletedPushJobs(pool string) []types.DataPushJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.DataPushJob
	for k, j := range s.deleted {
		if strings.HasPrefix(k, pool+"/") {
			out = append(out, j)
		}
	}
	return out
}

// SetPushJobStatus overrides the status of an existing push job
func (s *Server) SetPushJobStatus(pool, id string, status types.PushJobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.pushJobs[key(pool, id)]; ok {
		j.job.Status = status
	}
}

// Handlers

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]

	s.mu.Lock()
	statuses := []types.EntityStatus{}
	for k, j := range s.jobs {
		if !strings.HasPrefix(k, pool+"/") {
			continue
		}
		if len(j.executions) > 0 && len(j.script) > 0 {
			j.status = j.script[0]
			if len(j.script) > 1 {
				j.script = j.script[1:]
			}
		}
		statuses = append(statuses, types.EntityStatus{ID: strings.TrimPrefix(k, pool+"/"), Status: j.status})
	}
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, statuses)
}

func (s *Server) executeJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var config types.JobExecutionConfiguration
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid execution configuration")
		return
	}

	s.mu.Lock()
	j := s.job(vars["pool"], vars["job"])
	j.configs = append(j.configs, config)
	now := time.Now()
	execution := types.ExecutionItem{
		ID:          uuid.NewString(),
		PoolID:      vars["pool"],
		ExecutionID: uuid.NewString(),
		JobID:       vars["job"],
		Type:        types.ExecutionTypeJob,
		Status:      types.ExecutionStatusQueued,
		StartDate:   &now,
	}
	j.executions = append([]types.ExecutionItem{execution}, j.executions...)
	if len(j.script) == 0 {
		j.status = types.ExecutionStatusSuccess
	} else {
		j.status = types.ExecutionStatusQueued
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	j := s.job(vars["pool"], vars["job"])
	j.cancelled = true
	j.status = types.ExecutionStatusCancel
	j.script = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) jobExecutions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	items := append([]types.ExecutionItem{}, s.job(vars["pool"], vars["job"]).executions...)
	s.mu.Unlock()
	jsonResponse(w, http.StatusOK, types.ExecutionItemPage{ExecutionItems: items, NumOfPages: 1})
}

func taskID(i int) string {
	return "task-" + string(rune('a'+i))
}

func (s *Server) taskExecutions(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]
	executionID := r.URL.Query().Get("executionId")
	jobID := r.URL.Query().Get("id")

	s.mu.Lock()
	j := s.job(pool, jobID)
	logs := j.failedLogs
	s.mu.Unlock()

	tasks := []types.ExecutionItem{{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		JobID:       jobID,
		TaskID:      "task-ok",
		Status:      types.ExecutionStatusSuccess,
		Type:        types.ExecutionTypeTask,
	}}
	for i := range logs {
		tasks = append(tasks, types.ExecutionItem{
			ID:          uuid.NewString(),
			ExecutionID: executionID,
			JobID:       jobID,
			TaskID:      taskID(i),
			Status:      types.ExecutionStatusFail,
			Type:        types.ExecutionTypeTask,
		})
	}
	jsonResponse(w, http.StatusOK, tasks)
}

func (s *Server) logDetail(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]
	id := r.URL.Query().Get("id")

	s.mu.Lock()
	var messages []types.LogMessage
	for k, j := range s.jobs {
		if !strings.HasPrefix(k, pool+"/") {
			continue
		}
		for i, text := range j.failedLogs {
			if taskID(i) == id {
				messages = append(messages,
					types.LogMessage{ID: uuid.NewString(), Level: "ERROR", LogMessage: text},
					types.LogMessage{ID: uuid.NewString(), Level: "INFO", LogMessage: "task aborted"},
				)
			}
		}
	}
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, types.LogMessagePage{LogMessages: messages, NumOfPages: 1})
}

func (s *Server) loadInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	m := s.model(vars["pool"], vars["model"])
	if m.load != nil && len(m.script) > 0 && (len(m.forceComplete) > 0 || len(m.partial) > 0) {
		m.load.LoadStatus = m.script[0]
		m.load.Message = m.message
		if len(m.script) > 1 {
			m.script = m.script[1:]
		}
	}
	var resp types.DataModelLoadSync
	if m.load != nil {
		load := *m.load
		resp.LoadInfo = &types.DataModelLoadInfo{CurrentComputeLoad: &load}
	}
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) startLoad(m *dataModel, model string) {
	status := types.LoadStatusSuccess
	if len(m.script) > 0 {
		status = types.LoadStatusRunning
	}
	m.load = &types.DataModelLoad{DataModelID: model, DataLoadID: uuid.NewString(), LoadStatus: status}
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	force := r.URL.Query().Get("forceComplete") == "true"

	s.mu.Lock()
	m := s.model(vars["pool"], vars["model"])
	m.forceComplete = append(m.forceComplete, force)
	s.startLoad(m, vars["model"])
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) partialReload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var tableIDs []string
	if err := json.NewDecoder(r.Body).Decode(&tableIDs); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid table ids")
		return
	}

	s.mu.Lock()
	m := s.model(vars["pool"], vars["model"])
	m.partial = append(m.partial, tableIDs)
	s.startLoad(m, vars["model"])
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) cancelReload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	m := s.model(vars["pool"], vars["model"])
	m.cancelled = true
	m.script = nil
	if m.load != nil {
		m.load.LoadStatus = types.LoadStatusCanceled
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]
	s.mu.Lock()
	tables := append([]types.PoolTable{}, s.tables[pool]...)
	s.mu.Unlock()
	jsonResponse(w, http.StatusOK, tables)
}

func (s *Server) createPushJob(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]

	var job types.DataPushJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid push job")
		return
	}
	if job.TargetName == "" {
		errorResponse(w, http.StatusBadRequest, "targetName is required")
		return
	}

	now := time.Now()
	job.ID = uuid.NewString()
	job.DataPoolID = pool
	job.Status = types.PushJobStatusNew
	job.LastModified = &now
	if job.Type == "" {
		job.Type = types.PushJobTypeReplace
	}
	if job.FileType == "" {
		job.FileType = types.UploadFileTypeParquet
	}

	s.mu.Lock()
	s.pushJobs[key(pool, job.ID)] = &pushJob{job: job}
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, job)
}

func (s *Server) listPushJobs(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.PushJobs(mux.Vars(r)["pool"]))
}

func (s *Server) lookupPushJob(w http.ResponseWriter, r *http.Request) (*pushJob, string, bool) {
	vars := mux.Vars(r)
	k := key(vars["pool"], vars["job"])
	j, ok := s.pushJobs[k]
	if !ok {
		errorResponse(w, http.StatusNotFound, "push job not found")
	}
	return j, k, ok
}

func (s *Server) getPushJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, _, ok := s.lookupPushJob(w, r)
	if !ok {
		s.mu.Unlock()
		return
	}
	if j.executed && len(j.script) > 0 {
		j.job.Status = j.script[0]
		if len(j.script) > 1 {
			j.script = j.script[1:]
		}
	}
	job := j.job
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, job)
}

func (s *Server) executePushJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, _, ok := s.lookupPushJob(w, r)
	if !ok {
		return
	}
	if j.job.Status != types.PushJobStatusNew {
		errorResponse(w, http.StatusConflict, "push job already submitted")
		return
	}
	j.executed = true
	j.script = append([]types.PushJobStatus(nil), s.pushScript...)
	j.job.Status = types.PushJobStatusQueued
	if len(j.script) == 0 {
		j.job.Status = types.PushJobStatusDone
	}
	j.job.Logs = append([]string(nil), s.pushLogs...)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deletePushJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, k, ok := s.lookupPushJob(w, r)
	if !ok {
		return
	}
	s.deleted[k] = j.job
	delete(s.pushJobs, k)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) receiveChunk(w http.ResponseWriter, r *http.Request, typ types.ChunkType) {
	file, _, err := r.FormFile("file")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "unreadable file part")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, _, ok := s.lookupPushJob(w, r)
	if !ok {
		return
	}
	now := time.Now()
	j.chunks = append(j.chunks, types.DataPushChunk{
		ID:           uuid.NewString(),
		CreationDate: &now,
		Type:         typ,
		PushJobID:    j.job.ID,
	})
	s.chunks = append(s.chunks, Chunk{PoolID: j.job.DataPoolID, JobID: j.job.ID, Type: typ, Data: data})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) upsertChunk(w http.ResponseWriter, r *http.Request) {
	s.receiveChunk(w, r, types.ChunkTypeUpsert)
}

func (s *Server) deleteChunk(w http.ResponseWriter, r *http.Request) {
	s.receiveChunk(w, r, types.ChunkTypeDelete)
}

func (s *Server) listChunks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, _, ok := s.lookupPushJob(w, r)
	if !ok {
		s.mu.Unlock()
		return
	}
	chunks := append([]types.DataPushChunk{}, j.chunks...)
	s.mu.Unlock()
	jsonResponse(w, http.StatusOK, chunks)
}
