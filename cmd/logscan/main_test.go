package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/SteelMorgan/logscan/internal/config"
	"github.com/SteelMorgan/logscan/internal/rotating"
)

type cliTestEnv struct {
	baseDir    string
	logPath    string
	offsetPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		logPath:    filepath.Join(base, "app.log"),
		offsetPath: filepath.Join(base, "offsets.json"),
	}

	jobsPath := filepath.Join(base, "jobs.yaml")
	jobs := `jobs:
  - name: app
    path: ` + env.logPath + `
    time_layout: "%Y-%m-%d %H:%M:%S"
    patterns:
      - id: error
        expr: '(?P<log_time>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) ERROR (?P<msg>.*)'
`
	if err := os.WriteFile(jobsPath, []byte(jobs), 0o644); err != nil {
		t.Fatalf("write jobs: %v", err)
	}

	t.Setenv("JOBS_FILE", jobsPath)
	t.Setenv("OFFSET_FILE", env.offsetPath)
	t.Setenv("OFFSET_BACKEND", "json")
	t.Setenv("OUTPUT", "stdout")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOCK_FILE", "")
	t.Setenv("TRACING_ENABLED", "false")

	return env
}

func (e *cliTestEnv) appendLog(t *testing.T, content string) {
	t.Helper()
	f, err := os.OpenFile(e.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestScanCommand_EmitsNewRecordsOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	env.appendLog(t, "2024-05-01 09:00:00 ERROR first\n2024-05-01 09:00:01 INFO skipped\n")

	out, _, err := runCLI(t, "", "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if strings.Count(out, "\n") != 1 || !strings.Contains(out, `"msg":"first"`) {
		t.Fatalf("first scan output = %q", out)
	}

	out, _, err = runCLI(t, "", "scan", "app")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out != "" {
		t.Errorf("idle scan output = %q, want empty", out)
	}

	env.appendLog(t, "2024-05-01 09:00:02 ERROR second\n")
	out, _, err = runCLI(t, "", "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, `"msg":"second"`) || strings.Contains(out, `"msg":"first"`) {
		t.Errorf("third scan output = %q", out)
	}

	data, err := os.ReadFile(env.offsetPath)
	if err != nil {
		t.Fatalf("read offsets: %v", err)
	}
	if !strings.HasPrefix(string(data), "{\n    \"") {
		t.Errorf("offset file = %q, want 4-space indented object", data)
	}
}

func TestScanCommand_UnknownJob(t *testing.T) {
	setupCLITestEnv(t)

	_, _, err := runCLI(t, "", "scan", "nope")
	if err == nil || !strings.Contains(err.Error(), `unknown job "nope"`) {
		t.Errorf("scan nope error = %v", err)
	}
}

func TestScanCommand_RespectsLockFile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.appendLog(t, "2024-05-01 09:00:00 ERROR first\n")

	lockPath := filepath.Join(env.baseDir, "scan.lock")
	t.Setenv("LOCK_FILE", lockPath)

	held := flock.New(lockPath)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}

	_, _, err = runCLI(t, "", "scan")
	if err == nil || !strings.Contains(err.Error(), "another scan is running") {
		t.Errorf("scan under held lock error = %v", err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	out, _, err := runCLI(t, "", "scan")
	if err != nil {
		t.Fatalf("scan after unlock: %v", err)
	}
	if !strings.Contains(out, `"msg":"first"`) {
		t.Errorf("scan output = %q", out)
	}
}

func TestOffsetsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.appendLog(t, "2024-05-01 09:00:00 ERROR first\n")

	if _, _, err := runCLI(t, "", "scan"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	env.appendLog(t, "tail\n")

	out, _, err := runCLI(t, "", "offsets", "list")
	if err != nil {
		t.Fatalf("offsets list: %v", err)
	}
	if !strings.Contains(out, env.logPath) {
		t.Errorf("offsets list output missing target:\n%s", out)
	}
	// 5 bytes appended after the scan
	if !strings.Contains(out, " 5 ") {
		t.Errorf("offsets list output missing pending bytes:\n%s", out)
	}

	out, _, err = runCLI(t, "", "offsets", "reset", env.logPath)
	if err != nil {
		t.Fatalf("offsets reset: %v", err)
	}
	if !strings.Contains(out, "Reset 1 offset(s)") {
		t.Errorf("offsets reset output = %q", out)
	}

	out, _, err = runCLI(t, "", "offsets", "list")
	if err != nil {
		t.Fatalf("offsets list: %v", err)
	}
	if !strings.Contains(out, "No saved offsets") {
		t.Errorf("offsets list after reset = %q", out)
	}

	if _, _, err := runCLI(t, "", "offsets", "reset", "--to=-1", env.logPath); err == nil {
		t.Errorf("offsets reset --to -1 error = nil, want error")
	}
}

func TestWriteCommand_CopiesStdinToDatedFile(t *testing.T) {
	env := setupCLITestEnv(t)
	base := filepath.Join(env.baseDir, "out", "app.log")

	if _, _, err := runCLI(t, "one\ntwo\nthree", "write", base); err != nil {
		t.Fatalf("write: %v", err)
	}

	dated := base + "." + time.Now().Format("2006-01-02")
	data, err := os.ReadFile(dated)
	if err != nil {
		t.Fatalf("read %s: %v", dated, err)
	}
	if string(data) != "one\ntwo\nthree" {
		t.Errorf("dated file = %q", data)
	}
	if target, err := os.Readlink(base); err != nil || target != filepath.Base(dated) {
		t.Errorf("Readlink(base) = %q, %v; want %q", target, err, filepath.Base(dated))
	}
}

func TestWriteCommand_RejectsInvalidSuffix(t *testing.T) {
	env := setupCLITestEnv(t)
	base := filepath.Join(env.baseDir, "out", "app.log")

	for _, suffix := range []string{"--suffix=", "--suffix=%Y/%m-%d"} {
		_, _, err := runCLI(t, "line\n", "write", suffix, base)
		if !errors.Is(err, rotating.ErrInvalidSuffix) {
			t.Errorf("write %s error = %v, want ErrInvalidSuffix", suffix, err)
		}
	}
	if _, err := os.Stat(filepath.Dir(base)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("output directory created for rejected suffix: %v", err)
	}
}

func TestSelectJobs(t *testing.T) {
	jobs := []config.Job{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "all", args: nil, want: "a,b,c"},
		{name: "named order", args: []string{"c", "a"}, want: "c,a"},
		{name: "unknown", args: []string{"a", "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectJobs(jobs, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("selectJobs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			names := make([]string, 0, len(got))
			for _, job := range got {
				names = append(names, job.Name)
			}
			if strings.Join(names, ",") != tt.want {
				t.Errorf("selectJobs() = %v, want %s", names, tt.want)
			}
		})
	}
}
