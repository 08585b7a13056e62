package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tdh8316/osintagg/internal/export"
)

// platformsFile writes a registry mirroring the built-in platforms, all
// pointed at srv.
func platformsFile(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(`{"version":"1.0","platforms":[`)
	for i, name := range []string{"GitHub", "Instagram", "Twitter", "Reddit", "Medium"} {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"name":%q,"url":"%s/%s/{username}","method":"GET","found_status":200,"not_found_status":404}`,
			name, srv.URL, strings.ToLower(name))
	}
	b.WriteString(`]}`)

	path := filepath.Join(t.TempDir(), "platforms.json")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write platforms: %v", err)
	}
	return path
}

// profileServer answers 200 for /<platform>/johndoe on the given platforms.
func profileServer(t *testing.T, found ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, f := range found {
			if r.URL.Path == "/"+strings.ToLower(f)+"/johndoe" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunScanAndExport(t *testing.T) {
	srv := profileServer(t, "GitHub", "Twitter", "Reddit")
	out := filepath.Join(t.TempDir(), "johndoe.json")

	code, stdout, stderr := run(t, context.Background(),
		"-u", "johndoe",
		"--platforms-file", platformsFile(t, srv),
		"--delay", "0s",
		"--export", "json",
		"-o", out,
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	for _, want := range []string{
		"[1/5] Checking GitHub... FOUND - " + srv.URL + "/github/johndoe",
		"[2/5] Checking Instagram... Not found",
		"SUMMARY",
		"60.00%",
		"Results exported to " + out,
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}

	res, err := export.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	s := res.Summary
	if s.Total != 5 || s.Found != 3 || s.NotFound != 2 || s.Errors != 0 || s.SuccessRate != 60.0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestRunFilteredPlatforms(t *testing.T) {
	srv := profileServer(t, "GitHub")

	code, stdout, stderr := run(t, context.Background(),
		"-u", "johndoe",
		"--platforms-file", platformsFile(t, srv),
		"--delay", "0s",
		"--no-banner",
		"-p", "Reddit,Nope,GitHub",
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	gh := strings.Index(stdout, "[1/2] Checking GitHub...")
	rd := strings.Index(stdout, "[2/2] Checking Reddit...")
	if gh < 0 || rd < 0 || gh > rd {
		t.Fatalf("expected GitHub then Reddit in registry order:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Unknown platforms ignored: Nope") {
		t.Fatalf("expected unknown platform warning:\n%s", stdout)
	}
}

func TestRunDefaultExportFilename(t *testing.T) {
	srv := profileServer(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 0, time.Local) }
	t.Cleanup(func() { now = time.Now })

	code, _, stderr := run(t, context.Background(),
		"-u", "johndoe",
		"--platforms-file", platformsFile(t, srv),
		"--delay", "0s",
		"--export", "csv",
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	data, err := os.ReadFile(filepath.Join(dir, "osint_results_johndoe_20240301_123045.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "platform,status,url,error_detail\n") {
		t.Fatalf("unexpected csv:\n%s", data)
	}
}

func TestRunUsageErrors(t *testing.T) {
	srv := profileServer(t)
	file := platformsFile(t, srv)

	tests := []struct {
		name string
		args []string
	}{
		{"missing username", []string{"--platforms-file", file}},
		{"username too long", []string{"-u", strings.Repeat("a", 51), "--platforms-file", file}},
		{"bad export format", []string{"-u", "johndoe", "--export", "xml", "--platforms-file", file}},
		{"no matching platforms", []string{"-u", "johndoe", "-p", "Nope", "--platforms-file", file}},
		{"bad concurrency", []string{"-u", "johndoe", "--concurrency", "0", "--platforms-file", file}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, context.Background(), tt.args...)
			if code != 2 {
				t.Fatalf("exit code %d, want 2 (stderr: %s)", code, stderr)
			}
			if stderr == "" {
				t.Fatal("expected an error message on stderr")
			}
		})
	}
}

func TestRunBadRegistryFile(t *testing.T) {
	code, _, _ := run(t, context.Background(), "-u", "johndoe", "--platforms-file", filepath.Join(t.TempDir(), "missing.json"))
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
}

func TestRunHelp(t *testing.T) {
	code, stdout, _ := run(t, context.Background(), "--help")
	if code != 0 {
		t.Fatalf("exit code %d, want 0", code)
	}
	if !strings.Contains(stdout, "--platforms") {
		t.Fatalf("unexpected help:\n%s", stdout)
	}
}

func TestRunListPlatforms(t *testing.T) {
	code, stdout, stderr := run(t, context.Background(), "--list-platforms")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	for _, name := range []string{"GitHub", "Instagram", "Twitter/X", "Reddit", "Medium"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("platform list missing %s:\n%s", name, stdout)
		}
	}
}

func TestRunInterruptedSkipsExport(t *testing.T) {
	srv := profileServer(t, "GitHub")
	out := filepath.Join(t.TempDir(), "out.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, stdout, stderr := run(t, ctx,
		"-u", "johndoe",
		"--platforms-file", platformsFile(t, srv),
		"--export", "json",
		"-o", out,
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Scan interrupted") {
		t.Fatalf("expected interruption warning:\n%s", stdout)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("export must be skipped when interrupted, stat err = %v", err)
	}
}

func TestRunReport(t *testing.T) {
	srv := profileServer(t, "Reddit")
	out := filepath.Join(t.TempDir(), "johndoe.json")

	if code, _, stderr := run(t, context.Background(),
		"-u", "johndoe", "--platforms-file", platformsFile(t, srv), "--delay", "0s", "-o", out,
	); code != 0 {
		t.Fatalf("scan exit code %d, stderr: %s", code, stderr)
	}

	code, stdout, stderr := run(t, context.Background(), "report", out)
	if code != 0 {
		t.Fatalf("report exit code %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"Report for 'johndoe'", "Reddit", srv.URL + "/reddit/johndoe", "20.00%"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report missing %q:\n%s", want, stdout)
		}
	}
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		name, output string
		want         export.Format
		wantErr      bool
	}{
		{"", "", "", false},
		{"json", "", export.FormatJSON, false},
		{"CSV", "x.json", export.FormatCSV, false},
		{"", "results.csv", export.FormatCSV, false},
		{"", "results.txt", export.FormatJSON, false},
		{"xml", "", "", true},
	}

	for _, tt := range tests {
		got, err := exportFormat(tt.name, tt.output)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("exportFormat(%q, %q) = %q, %v", tt.name, tt.output, got, err)
		}
	}
}
