package probe

import "time"

type Status string

const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// ErrorKind tells apart the reasons a probe ended in StatusError.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindConnection       ErrorKind = "connection"
	KindTimeout          ErrorKind = "timeout"
	KindRedirect         ErrorKind = "redirect"
	KindUnexpectedStatus ErrorKind = "unexpected_status"
	KindTransport        ErrorKind = "transport"
)

// Outcome is the classified result of probing one platform.
// URL is set only for StatusFound; ErrorKind and Detail only for StatusError.
type Outcome struct {
	Platform   string
	Status     Status
	URL        string
	StatusCode int
	ErrorKind  ErrorKind
	Detail     string
}

func (o Outcome) Found() bool { return o.Status == StatusFound }

type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Delay is the pause between two consecutive probes.
	Delay time.Duration
	// Concurrency above 1 enables the worker pool; Delay then paces request starts.
	Concurrency int
}
