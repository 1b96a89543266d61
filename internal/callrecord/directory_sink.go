package callrecord

import "context"

// CallLogger is implemented by the patient directory, which keeps a call log
// next to the patient records.
type CallLogger interface {
	LogCall(ctx context.Context, rec Record) error
}

type DirectorySink struct {
	store CallLogger
}

func NewDirectorySink(store CallLogger) *DirectorySink {
	return &DirectorySink{store: store}
}

func (s *DirectorySink) Name() string { return "directory" }

func (s *DirectorySink) Write(ctx context.Context, rec Record) error {
	return s.store.LogCall(ctx, rec)
}
