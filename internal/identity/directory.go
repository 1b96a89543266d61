package identity

import (
	"context"
	"sync"
)

// Directory is the durable phone-keyed patient store.
type Directory interface {
	// GetByPhone returns (nil, nil) when the phone is not on file.
	GetByPhone(ctx context.Context, phone string) (*PatientRecord, error)
	Upsert(ctx context.Context, rec PatientRecord) error
}

// MemoryDirectory is a Directory for local runs without Postgres.
type MemoryDirectory struct {
	mu      sync.RWMutex
	records map[string]PatientRecord
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{records: make(map[string]PatientRecord)}
}

func (d *MemoryDirectory) GetByPhone(ctx context.Context, phone string) (*PatientRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[phone]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (d *MemoryDirectory) Upsert(ctx context.Context, rec PatientRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.records[rec.Phone]; ok {
		updated := rec.UpdatedAt
		rec = prev.Merge(rec)
		rec.UpdatedAt = updated
	}
	d.records[rec.Phone] = rec
	return nil
}
