package callrecord

import (
	"context"
	"time"
)

// Sink persists a finalized record. Sinks are independent: one failing never
// affects the others.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, rec Record) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Write(ctx context.Context, rec Record) error { return s.Fn(ctx, rec) }

type SinkResult struct {
	Sink    string        `json:"sink"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report is what Finalize returns: the frozen record and one result per sink.
type Report struct {
	Record  Record       `json:"record"`
	Results []SinkResult `json:"sinks"`
}

// Failed lists the sinks that did not persist the record.
func (r Report) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res.Sink)
		}
	}
	return out
}
