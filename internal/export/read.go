package export

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/osintagg/internal/probe"
	"github.com/tdh8316/osintagg/internal/result"
)

// Decode rebuilds a ScanResult from a JSON export. The summary is recomputed
// from the outcomes rather than trusted from the file.
func Decode(data []byte) (*result.ScanResult, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("export is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	username := doc.Get("username")
	if !username.Exists() {
		return nil, errors.New("export has no username")
	}
	outcomes := doc.Get("outcomes")
	if !outcomes.IsArray() {
		return nil, errors.New("export has no outcomes array")
	}

	r := &result.ScanResult{Username: username.String()}
	if ts := doc.Get("timestamp").String(); ts != "" {
		started, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, errors.Wrap(err, "parse timestamp")
		}
		r.StartedAt = started
		r.FinishedAt = started.Add(time.Duration(doc.Get("duration_ms").Int()) * time.Millisecond)
	}

	for _, o := range outcomes.Array() {
		r.Add(probe.Outcome{
			Platform:   o.Get("platform").String(),
			Status:     probe.Status(o.Get("status").String()),
			URL:        o.Get("url").String(),
			StatusCode: int(o.Get("status_code").Int()),
			ErrorKind:  probe.ErrorKind(o.Get("error_kind").String()),
			Detail:     o.Get("error").String(),
		})
	}
	r.Summary = result.Summarize(r.Outcomes)
	return r, nil
}

// ReadFile decodes the JSON export stored at path.
func ReadFile(path string) (*result.ScanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open export")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, 32<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read export")
	}
	r, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return r, nil
}
