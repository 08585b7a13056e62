package result

import (
	"iter"
	"math"
	"time"

	"github.com/tdh8316/osintagg/internal/probe"
)

type Summary struct {
	Total          int
	Found          int
	NotFound       int
	Errors         int
	SuccessRate    float64 // percentage of platforms the username was found on
	PlatformsFound []string
}

// ScanResult collects the outcomes of one scan in probe order.
type ScanResult struct {
	Username   string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []probe.Outcome
	Summary    Summary
}

func New(username string) *ScanResult {
	return &ScanResult{
		Username:  username,
		StartedAt: time.Now(),
	}
}

func (r *ScanResult) Add(o probe.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Finalize computes the summary and stamps the finish time.
func (r *ScanResult) Finalize() {
	r.Summary = Summarize(r.Outcomes)
	r.FinishedAt = time.Now()
}

func (r *ScanResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summarize counts outcomes by status.
func Summarize(outcomes []probe.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case probe.StatusFound:
			s.Found++
			s.PlatformsFound = append(s.PlatformsFound, o.Platform)
		case probe.StatusNotFound:
			s.NotFound++
		default:
			s.Errors++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = round2(float64(s.Found) / float64(s.Total) * 100)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Collect drains seq into a finalized ScanResult. onOutcome, if set, is called
// with each outcome and its 1-based position as it arrives.
func Collect(username string, seq iter.Seq[probe.Outcome], onOutcome func(i int, o probe.Outcome)) *ScanResult {
	r := New(username)
	for o := range seq {
		r.Add(o)
		if onOutcome != nil {
			onOutcome(len(r.Outcomes), o)
		}
	}
	r.Finalize()
	return r
}
