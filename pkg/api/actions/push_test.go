package actions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/api/client"
	"github.com/controlplane-com/pool-orchestrator/pkg/dataset"
	"github.com/controlplane-com/pool-orchestrator/pkg/emstest"
	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/poll"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
	"github.com/controlplane-com/pool-orchestrator/pkg/upload"
)

const testPool = "pool-1"

func noSleep(context.Context, time.Duration) error { return nil }

// newTestContext wires actions against a fake platform with 100-row chunks and no poll sleeps
func newTestContext(t *testing.T) (*Context, *emstest.Server) {
	t.Helper()
	srv := emstest.NewServer()
	t.Cleanup(srv.Close)

	config := client.DefaultConfig()
	config.BaseURL = srv.URL
	config.APIToken = srv.Token
	api, err := client.New(config)
	if err != nil {
		t.Fatalf("client.New() error: %v", err)
	}

	ctx, err := NewContext(api, testPool,
		[]operation.Option{operation.WithPollOptions(poll.WithSleeper(noSleep))},
		[]upload.Option{upload.WithChunkSize(100)})
	if err != nil {
		t.Fatalf("NewContext() error: %v", err)
	}
	return ctx, srv
}

func activities(n int) *dataset.Table {
	table := dataset.New(
		dataset.Column{Name: "ID", Type: dataset.TypeAny},
		dataset.Column{Name: "ACTIVITY", Type: dataset.TypeAny},
	)
	for i := range n {
		_ = table.Append(i, "Create Order")
	}
	return table
}

func requireKind(t *testing.T, err error, kind apierr.Kind) {
	t.Helper()
	if apierr.KindOf(err) != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestPushTableReplace(t *testing.T) {
	ctx, srv := newTestContext(t)

	result, err := PushTable(context.Background(), ctx, PushRequest{
		PushTarget: PushTarget{Table: "ACTIVITIES", Mode: PushReplace},
		Data:       activities(250),
	})
	if err != nil {
		t.Fatalf("PushTable() error: %v", err)
	}

	if len(result.Chunks) != 3 {
		t.Errorf("chunks = %d, want 3", len(result.Chunks))
	}
	if result.Run == nil || result.Run.State() != operation.StateSucceeded {
		t.Errorf("run = %+v, want succeeded", result.Run)
	}
	if n := len(srv.PushJobs(testPool)); n != 0 {
		t.Errorf("%d push jobs left behind", n)
	}

	deleted := srv.DeletedPushJobs(testPool)
	if len(deleted) != 1 {
		t.Fatalf("deleted push jobs = %d, want 1", len(deleted))
	}
	job := deleted[0]
	if job.ID != result.JobID || job.Type != types.PushJobTypeReplace || job.FileType != types.UploadFileTypeParquet {
		t.Errorf("unexpected job %+v", job)
	}
	if job.TableSchema == nil || len(job.TableSchema.Columns) != 2 {
		t.Fatalf("table schema = %+v", job.TableSchema)
	}
	if got := job.TableSchema.Columns[0].ColumnType; got != types.ColumnTypeInteger {
		t.Errorf("ID declared as %s, want INTEGER", got)
	}
	if got := job.TableSchema.Columns[1].ColumnType; got != types.ColumnTypeString {
		t.Errorf("ACTIVITY declared as %s, want STRING", got)
	}
}

func TestPushTableDeletesJobOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(srv *emstest.Server)
		kind  apierr.Kind
		msg   string
	}{
		{
			name: "remote failure",
			setup: func(srv *emstest.Server) {
				srv.ScriptPush(types.PushJobStatusRunning, types.PushJobStatusError)
				srv.SetPushLogs("column ID: invalid integer")
			},
			kind: apierr.KindOperationFailed,
			msg:  "column ID: invalid integer",
		},
		{
			name: "upload failure",
			setup: func(srv *emstest.Server) {
				srv.Fail(emstest.RouteChunkUpsert, http.StatusBadRequest)
			},
			kind: apierr.KindHTTPStatus,
		},
		{
			name: "execute failure",
			setup: func(srv *emstest.Server) {
				srv.Fail(emstest.RoutePushExecute, http.StatusForbidden)
			},
			kind: apierr.KindPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, srv := newTestContext(t)
			tt.setup(srv)

			_, err := PushTable(context.Background(), ctx, PushRequest{
				PushTarget: PushTarget{Table: "ACTIVITIES", Mode: PushAppend},
				Data:       activities(10),
			})
			requireKind(t, err, tt.kind)
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not contain %q", err, tt.msg)
			}
			if srv.Calls(emstest.RoutePushDelete) != 1 {
				t.Errorf("push job deleted %d times, want 1", srv.Calls(emstest.RoutePushDelete))
			}
			if n := len(srv.PushJobs(testPool)); n != 0 {
				t.Errorf("%d push jobs left behind", n)
			}
		})
	}
}

func TestPushTableExistingTable(t *testing.T) {
	tests := []struct {
		name    string
		target  PushTarget
		wantErr bool
	}{
		{"refused without drop", PushTarget{Mode: PushReplace}, true},
		{"refused without column config", PushTarget{Mode: PushReplace, DropIfExists: true}, true},
		{"forced", PushTarget{Mode: PushReplace, DropIfExists: true, Force: true}, false},
		{"with column config", PushTarget{Mode: PushReplace, DropIfExists: true, ColumnConfig: []types.ColumnTransport{
			{ColumnName: "ID", ColumnType: types.ColumnTypeInteger},
			{ColumnName: "ACTIVITY", ColumnType: types.ColumnTypeString, FieldLength: 200},
		}}, false},
		{"append needs no drop", PushTarget{Mode: PushAppend}, false},
		{"other connection", PushTarget{Mode: PushReplace, ConnectionID: "sap"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, srv := newTestContext(t)
			srv.AddTable(testPool, "ACTIVITIES")

			target := tt.target
			target.Table = "ACTIVITIES"
			_, err := PushTable(context.Background(), ctx, PushRequest{PushTarget: target, Data: activities(5)})
			if tt.wantErr {
				requireKind(t, err, apierr.KindInvalidConfig)
				if srv.Calls(emstest.RoutePushCreate) != 0 {
					t.Error("push job created for a refused push")
				}
				return
			}
			if err != nil {
				t.Fatalf("PushTable() error: %v", err)
			}
		})
	}
}

func TestPushTableColumnConfigIsSent(t *testing.T) {
	ctx, srv := newTestContext(t)
	config := []types.ColumnTransport{{ColumnName: "ID", ColumnType: types.ColumnTypeString, FieldLength: 40}}

	_, err := PushTable(context.Background(), ctx, PushRequest{
		PushTarget: PushTarget{Table: "ACTIVITIES", Mode: PushReplace, ColumnConfig: config},
		Data:       activities(1),
	})
	if err != nil {
		t.Fatalf("PushTable() error: %v", err)
	}
	job := srv.DeletedPushJobs(testPool)[0]
	if job.TableSchema == nil || job.TableSchema.Columns[0].FieldLength != 40 {
		t.Errorf("table schema = %+v", job.TableSchema)
	}
}

func TestPushTableUpsertWithDeletes(t *testing.T) {
	ctx, srv := newTestContext(t)

	removed := activities(3)
	result, err := PushTable(context.Background(), ctx, PushRequest{
		PushTarget: PushTarget{Table: "ACTIVITIES", Mode: PushUpsert, Keys: []string{"ID"}},
		Data:       activities(150),
		Deleted:    removed,
	})
	if err != nil {
		t.Fatalf("PushTable() error: %v", err)
	}
	if len(result.Chunks) != 2 || len(result.Deleted) != 1 {
		t.Errorf("chunks = %d/%d, want 2/1", len(result.Chunks), len(result.Deleted))
	}

	var got []types.ChunkType
	for _, c := range srv.Chunks() {
		got = append(got, c.Type)
	}
	want := []types.ChunkType{types.ChunkTypeUpsert, types.ChunkTypeUpsert, types.ChunkTypeDelete}
	if len(got) != len(want) {
		t.Fatalf("chunk types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d type = %s, want %s", i, got[i], want[i])
		}
	}

	job := srv.DeletedPushJobs(testPool)[0]
	if job.Type != types.PushJobTypeDelta || len(job.Keys) != 1 || job.Keys[0] != "ID" {
		t.Errorf("unexpected job %+v", job)
	}
	if job.TableSchema != nil {
		t.Errorf("delta push declared a schema: %+v", job.TableSchema)
	}
}

func TestPushTableValidation(t *testing.T) {
	tests := []struct {
		name string
		req  PushRequest
		kind apierr.Kind
	}{
		{"no table", PushRequest{PushTarget: PushTarget{Mode: PushAppend}, Data: activities(1)}, apierr.KindInvalidConfig},
		{"unknown mode", PushRequest{PushTarget: PushTarget{Table: "T", Mode: "merge"}, Data: activities(1)}, apierr.KindInvalidConfig},
		{"upsert without keys", PushRequest{PushTarget: PushTarget{Table: "T", Mode: PushUpsert}, Data: activities(1)}, apierr.KindInvalidConfig},
		{"unknown key", PushRequest{PushTarget: PushTarget{Table: "T", Mode: PushUpsert, Keys: []string{"CASE"}}, Data: activities(1)}, apierr.KindInvalidConfig},
		{"unknown delete key", PushRequest{PushTarget: PushTarget{Table: "T", Mode: PushUpsert, Keys: []string{"CASE"}}, Deleted: activities(1)}, apierr.KindInvalidConfig},
		{"delete on replace", PushRequest{PushTarget: PushTarget{Table: "T", Mode: PushReplace}, Deleted: activities(1)}, apierr.KindInvalidConfig},
		{"empty", PushRequest{PushTarget: PushTarget{Table: "T", Mode: PushAppend}, Data: activities(0)}, apierr.KindEmptyDataset},
		{"nil data", PushRequest{PushTarget: PushTarget{Table: "T", Mode: PushAppend}}, apierr.KindEmptyDataset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, srv := newTestContext(t)
			_, err := PushTable(context.Background(), ctx, tt.req)
			requireKind(t, err, tt.kind)
			if srv.TotalCalls() != 0 {
				t.Errorf("made %d calls, want 0", srv.TotalCalls())
			}
		})
	}
}

func TestPushTableSerializationErrorDeletesJob(t *testing.T) {
	ctx, srv := newTestContext(t)
	data := activities(2)
	data.Rows[1][1] = struct{}{}

	_, err := PushTable(context.Background(), ctx, PushRequest{
		PushTarget: PushTarget{Table: "ACTIVITIES", Mode: PushAppend},
		Data:       data,
	})
	if !errors.Is(err, apierr.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if srv.Calls(emstest.RouteChunkUpsert) != 0 {
		t.Error("chunks uploaded despite serialization error")
	}
	if len(srv.DeletedPushJobs(testPool)) != 1 {
		t.Error("push job not deleted")
	}
}

func TestPushTableReplaceSerializationErrorCarriesPool(t *testing.T) {
	ctx, srv := newTestContext(t)
	data := activities(2)
	data.Rows[1][1] = struct{}{}

	_, err := PushTable(context.Background(), ctx, PushRequest{
		PushTarget: PushTarget{Table: "ACTIVITIES", Mode: PushReplace, Force: true},
		Data:       data,
	})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindSerialization {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if apiErr.PoolID != testPool || apiErr.Operation != operation.KindPush.String() {
		t.Errorf("error %q lacks pool and operation", err)
	}
	if srv.Calls(emstest.RoutePushCreate) != 0 {
		t.Error("push job created for unserializable data")
	}
}
