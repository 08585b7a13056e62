package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tdh8316/osintagg/internal/probe"
	"github.com/tdh8316/osintagg/internal/result"
)

func sampleResult() *result.ScanResult {
	r := result.New("johndoe")
	r.StartedAt = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	r.Add(probe.Outcome{Platform: "GitHub", Status: probe.StatusFound, URL: "https://github.com/johndoe", StatusCode: 200})
	r.Add(probe.Outcome{Platform: "Instagram", Status: probe.StatusNotFound, StatusCode: 404})
	r.Add(probe.Outcome{Platform: "Reddit", Status: probe.StatusError, ErrorKind: probe.KindConnection,
		Detail: "connection failed - site may be blocking requests"})
	r.Finalize()
	return r
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "CSV": FormatCSV, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := sampleResult()

	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, orig); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Username != orig.Username {
		t.Fatalf("username = %q", got.Username)
	}
	if len(got.Outcomes) != len(orig.Outcomes) {
		t.Fatalf("got %d outcomes, want %d", len(got.Outcomes), len(orig.Outcomes))
	}
	for i := range orig.Outcomes {
		if got.Outcomes[i].Status != orig.Outcomes[i].Status {
			t.Errorf("outcome %d status = %s, want %s", i, got.Outcomes[i].Status, orig.Outcomes[i].Status)
		}
		if got.Outcomes[i].URL != orig.Outcomes[i].URL {
			t.Errorf("outcome %d url = %q, want %q", i, got.Outcomes[i].URL, orig.Outcomes[i].URL)
		}
	}
	if !reflect.DeepEqual(got.Summary, orig.Summary) {
		t.Fatalf("summary = %+v, want %+v", got.Summary, orig.Summary)
	}
	if !got.StartedAt.Equal(orig.StartedAt) {
		t.Fatalf("timestamp = %s", got.StartedAt)
	}
}

func TestJSONLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc := gjson.ParseBytes(buf.Bytes())

	for _, path := range []string{"username", "timestamp", "outcomes", "summary.success_rate"} {
		if !doc.Get(path).Exists() {
			t.Errorf("missing %s", path)
		}
	}
	if got := doc.Get("outcomes.2.error").String(); got != "connection failed - site may be blocking requests" {
		t.Errorf("error field = %q", got)
	}
	if got := doc.Get("timestamp").String(); got != "2024-03-01T12:30:45Z" {
		t.Errorf("timestamp = %q", got)
	}
}

func TestJSONEmptyResultHasArray(t *testing.T) {
	r := result.New("nobody")
	r.Finalize()

	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, r); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !gjson.GetBytes(buf.Bytes(), "outcomes").IsArray() {
		t.Fatalf("outcomes should be an array: %s", buf.String())
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"platform", "status", "url", "error_detail"},
		{"GitHub", "found", "https://github.com/johndoe", ""},
		{"Instagram", "not_found", "", ""},
		{"Reddit", "error", "", "connection failed - site may be blocking requests"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v", rows)
	}
}

func TestWriteUnsupported(t *testing.T) {
	if err := Write(&bytes.Buffer{}, Format("xml"), sampleResult()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local)

	if got := DefaultFilename("johndoe", FormatJSON, now); got != "osint_results_johndoe_20240301_090507.json" {
		t.Fatalf("got %q", got)
	}
	if got := DefaultFilename("a/b c", FormatCSV, now); got != "osint_results_a_b_c_20240301_090507.csv" {
		t.Fatalf("got %q", got)
	}
}

func TestToFileAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	if err := ToFile(path, FormatJSON, sampleResult()); err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}

	r, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if r.Summary.Found != 1 || r.Summary.NotFound != 1 || r.Summary.Errors != 1 {
		t.Fatalf("summary = %+v", r.Summary)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"not json", `{"outcomes": []}`, `{"username": "x"}`} {
		if _, err := Decode([]byte(in)); err == nil {
			t.Errorf("Decode(%q) should fail", in)
		}
	}
}
