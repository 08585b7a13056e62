package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/tdh8316/osintagg/internal/result"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
	}
}

type jsonOutcome struct {
	Platform   string `json:"platform"`
	Status     string `json:"status"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error"`
}

type jsonSummary struct {
	Total          int      `json:"total"`
	Found          int      `json:"found"`
	NotFound       int      `json:"not_found"`
	Errors         int      `json:"errors"`
	SuccessRate    float64  `json:"success_rate"`
	PlatformsFound []string `json:"platforms_found"`
}

type jsonDocument struct {
	Username   string        `json:"username"`
	Timestamp  string        `json:"timestamp"`
	DurationMS int64         `json:"duration_ms"`
	Outcomes   []jsonOutcome `json:"outcomes"`
	Summary    jsonSummary   `json:"summary"`
}

func toDocument(r *result.ScanResult) jsonDocument {
	doc := jsonDocument{
		Username:   r.Username,
		Timestamp:  r.StartedAt.Format(time.RFC3339),
		DurationMS: r.Duration().Milliseconds(),
		Outcomes:   make([]jsonOutcome, 0, len(r.Outcomes)),
		Summary: jsonSummary{
			Total:          r.Summary.Total,
			Found:          r.Summary.Found,
			NotFound:       r.Summary.NotFound,
			Errors:         r.Summary.Errors,
			SuccessRate:    r.Summary.SuccessRate,
			PlatformsFound: append([]string{}, r.Summary.PlatformsFound...),
		},
	}
	for _, o := range r.Outcomes {
		doc.Outcomes = append(doc.Outcomes, jsonOutcome{
			Platform:   o.Platform,
			Status:     string(o.Status),
			URL:        o.URL,
			StatusCode: o.StatusCode,
			ErrorKind:  string(o.ErrorKind),
			Error:      o.Detail,
		})
	}
	return doc
}

// Write serializes r to w in the given format.
func Write(w io.Writer, format Format, r *result.ScanResult) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "%q", string(format))
	}
}

func writeJSON(w io.Writer, r *result.ScanResult) error {
	out, err := sonic.ConfigStd.MarshalIndent(toDocument(r), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

var csvHeader = []string{"platform", "status", "url", "error_detail"}

func writeCSV(w io.Writer, r *result.ScanResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range r.Outcomes {
		if err := cw.Write([]string{o.Platform, string(o.Status), o.URL, o.Detail}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile writes r to path through a temporary file so a failed export never
// leaves a truncated file behind.
func ToFile(path string, format Format, r *result.ScanResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create export directory")
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "create export file")
	}

	writeErr := Write(f, format, r)
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(writeErr, "write %s", path)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(closeErr, "close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "rename %s -> %s", tmp, path)
	}
	return nil
}

// DefaultFilename builds osint_results_{username}_{YYYYMMDD_HHMMSS}.{ext}.
func DefaultFilename(username string, format Format, now time.Time) string {
	return fmt.Sprintf("osint_results_%s_%s.%s", safeName(username), now.Format("20060102_150405"), format)
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
