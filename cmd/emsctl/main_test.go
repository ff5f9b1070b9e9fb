package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/emstest"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// newTestServer points the environment at a fake platform
func newTestServer(t *testing.T) *emstest.Server {
	t.Helper()
	srv := emstest.NewServer()
	t.Cleanup(srv.Close)
	t.Setenv("EMS_BASE_URL", srv.URL)
	t.Setenv("EMS_API_TOKEN", srv.Token)
	t.Setenv("EMS_POLL_INTERVAL", "10ms")
	t.Setenv("LOG_LEVEL", "error")
	return srv
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "emsctl dev") {
		t.Errorf("expected output to contain 'emsctl dev', got: %s", out)
	}
}

func TestExecuteJobCmd(t *testing.T) {
	srv := newTestServer(t)
	srv.SetJobStatus("pool-1", "job-1", types.ExecutionStatusSuccess)

	out, err := runCmd(t, "execute-job", "job-1", "-p", "pool-1", "--transformation", "tr-1", "--full")
	if err != nil {
		t.Fatalf("execute-job failed: %v", err)
	}
	if !strings.Contains(out, "pipeline execution job-1: SUCCEEDED") {
		t.Errorf("unexpected output: %s", out)
	}

	configs := srv.ExecutionConfigs("pool-1", "job-1")
	if len(configs) != 1 {
		t.Fatalf("executions = %d, want 1", len(configs))
	}
	if configs[0].Mode != types.ExtractionModeFull || len(configs[0].Transformations) != 1 {
		t.Errorf("unexpected configuration %+v", configs[0])
	}
}

func TestExecuteJobCmdAlreadyRunning(t *testing.T) {
	srv := newTestServer(t)
	srv.SetJobStatus("pool-1", "job-1", types.ExecutionStatusRunning)

	_, err := runCmd(t, "execute-job", "job-1", "-p", "pool-1")
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected already running error, got %v", err)
	}
}

func TestReloadModelCmd(t *testing.T) {
	srv := newTestServer(t)

	if _, err := runCmd(t, "reload-model", "dm-1", "-p", "pool-1", "--table", "t1", "--table", "t2"); err != nil {
		t.Fatalf("reload-model failed: %v", err)
	}
	_, partial := srv.Reloads("pool-1", "dm-1")
	if len(partial) != 1 || strings.Join(partial[0], ",") != "t1,t2" {
		t.Errorf("partial reloads = %v", partial)
	}

	if _, err := runCmd(t, "reload-model", "dm-1", "-p", "pool-1", "--table", "t1", "--from-cache"); err == nil {
		t.Error("expected error for --from-cache with --table")
	}
}

func TestReloadModelCmdFullReload(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		force bool
	}{
		{"complete by default", nil, true},
		{"from cache", []string{"--from-cache"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			args := append([]string{"reload-model", "dm-1", "-p", "pool-1"}, tt.args...)
			if _, err := runCmd(t, args...); err != nil {
				t.Fatalf("reload-model failed: %v", err)
			}
			full, partial := srv.Reloads("pool-1", "dm-1")
			if len(full) != 1 || len(partial) != 0 {
				t.Fatalf("reloads = %v/%v, want one full reload", full, partial)
			}
			if full[0] != tt.force {
				t.Errorf("forceComplete = %v, want %v", full[0], tt.force)
			}
		})
	}
}

func TestCancelCmd(t *testing.T) {
	srv := newTestServer(t)

	if _, err := runCmd(t, "cancel", "job", "job-1", "-p", "pool-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !srv.JobCancelled("pool-1", "job-1") {
		t.Error("job not cancelled")
	}

	if _, err := runCmd(t, "cancel", "analysis", "a-1", "-p", "pool-1"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestPushCSVCmd(t *testing.T) {
	srv := newTestServer(t)
	t.Setenv("EMS_CHUNK_SIZE", "2")

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "activities.csv")
	configPath := filepath.Join(dir, "columns.yaml")
	if err := os.WriteFile(csvPath, []byte("ID,ACTIVITY,TS\n1,Create,2024-01-02 10:00:00\n2,Approve,2024-01-02 11:00:00\n3,Ship,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte("columns:\n  - name: ID\n    type: integer\n  - name: ACTIVITY\n    type: string\n  - name: TS\n    type: datetime\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "push-csv", csvPath, "-p", "pool-1", "-t", "ACTIVITIES", "-m", "replace", "-c", configPath)
	if err != nil {
		t.Fatalf("push-csv failed: %v", err)
	}
	if !strings.Contains(out, "pushed 3 rows to ACTIVITIES in 2 chunks") {
		t.Errorf("unexpected output: %s", out)
	}

	jobs := srv.DeletedPushJobs("pool-1")
	if len(jobs) != 1 {
		t.Fatalf("deleted push jobs = %d, want 1", len(jobs))
	}
	schema := jobs[0].TableSchema
	if schema == nil || len(schema.Columns) != 3 || schema.Columns[2].ColumnType != types.ColumnTypeDatetime {
		t.Errorf("table schema = %+v", schema)
	}
}

func TestPushCSVCmdRequiresTable(t *testing.T) {
	newTestServer(t)
	if _, err := runCmd(t, "push-csv", "-", "-p", "pool-1"); err == nil {
		t.Error("expected error without --table")
	}
}

func TestPushSQLCmdRequiresDSN(t *testing.T) {
	newTestServer(t)
	t.Setenv("MYSQL_DSN", "")

	_, err := runCmd(t, "push-sql", "-p", "pool-1", "-t", "ORDERS", "-q", "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "MYSQL_DSN") {
		t.Errorf("expected dsn error, got %v", err)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"5", 5 * time.Second},
		{"soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("EMS_POLL_INTERVAL", "5s")
	t.Setenv("EMS_POLL_TIMEOUT", "10m")
	t.Setenv("EMS_CHUNK_SIZE", "5000")

	settings := settingsFromEnv()
	if settings.Poll.Interval != 5*time.Second || settings.Poll.Timeout != 10*time.Minute {
		t.Errorf("Poll = %+v", settings.Poll)
	}
	if settings.ChunkSize != 5000 {
		t.Errorf("ChunkSize = %d", settings.ChunkSize)
	}
}
