// Package identity classifies callers as new, existing or returning from an
// in-process cache and a durable directory, and keeps both up to date.
package identity

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

type Resolution struct {
	CustomerType CustomerType   `json:"customer_type"`
	Record       *PatientRecord `json:"record"`
	// SkipEmail is set when an email is already on file, so the dialogue does
	// not have to collect it again.
	SkipEmail bool `json:"skip_email"`
}

type Resolver struct {
	cache  Cache
	dir    Directory
	logger zerolog.Logger
	now    func() time.Time
}

// NewResolver wires the cache and directory. dir may be nil, in which case
// every cache miss resolves to CustomerNew.
func NewResolver(cache Cache, dir Directory, logger zerolog.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{
		cache:  cache,
		dir:    dir,
		logger: logger.With().Str("component", "identity").Logger(),
		now:    time.Now,
	}
}

// Resolve looks the caller up by phone: cache first, then the directory.
// A directory failure yields CustomerUnknown together with a
// provider_unavailable error; the caller is then treated as new.
func (r *Resolver) Resolve(ctx context.Context, phone, name string) (Resolution, error) {
	const op = "identity.Resolve"

	key := NormalizePhone(phone)
	if key == "" {
		return Resolution{}, apperrors.Validation(op, "caller phone is required")
	}

	if rec, ok := r.cache.Get(key); ok {
		r.logger.Debug().Str("phone", key).Msg("caller found in cache")
		return resolution(CustomerExisting, &rec), nil
	}

	if r.dir == nil {
		return resolution(CustomerNew, nil), nil
	}

	rec, err := r.dir.GetByPhone(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("phone", key).Msg("directory lookup failed")
		return Resolution{CustomerType: CustomerUnknown}, apperrors.ProviderUnavailable(op, "patient directory unavailable", err)
	}
	if rec == nil {
		r.logger.Debug().Str("phone", key).Str("name", name).Msg("new caller")
		return resolution(CustomerNew, nil), nil
	}

	r.cache.Put(*rec)
	r.logger.Debug().Str("phone", key).Msg("caller found in directory")
	return resolution(CustomerReturning, rec), nil
}

func resolution(t CustomerType, rec *PatientRecord) Resolution {
	res := Resolution{CustomerType: t, Record: rec}
	if rec != nil && rec.Email != "" {
		res.SkipEmail = true
	}
	return res
}

// Lookup reads the cache only.
func (r *Resolver) Lookup(phone string) (PatientRecord, bool) {
	return r.cache.Get(NormalizePhone(phone))
}

// Save merges in into whatever is on file for the phone and writes the result
// to the cache and the directory. The cache is updated even when the directory
// fails; that case returns the merged record and a provider_unavailable error.
// If the stored record could not be read, the directory is not written at all.
func (r *Resolver) Save(ctx context.Context, in PatientRecord) (PatientRecord, error) {
	const op = "identity.Save"

	in.Phone = NormalizePhone(in.Phone)
	if in.Phone == "" {
		return PatientRecord{}, apperrors.Validation(op, "patient phone is required")
	}

	now := r.now()
	current, found := r.cache.Get(in.Phone)
	var readErr error
	if !found && r.dir != nil {
		prev, err := r.dir.GetByPhone(ctx, in.Phone)
		if err != nil {
			r.logger.Warn().Err(err).Str("phone", in.Phone).Msg("directory read before save failed")
			readErr = err
		} else if prev != nil {
			current, found = *prev, true
		}
	}

	if in.CustomerType == "" {
		in.CustomerType = string(CustomerNew)
		if found {
			in.CustomerType = string(CustomerReturning)
		}
	}

	merged := current.Merge(in)
	if !found || merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}
	merged.UpdatedAt = now

	r.cache.Put(merged)

	if r.dir == nil {
		return merged, nil
	}
	// Without the stored record the merge is blind; writing it would clobber
	// fields the caller did not repeat.
	if readErr != nil {
		return merged, apperrors.ProviderUnavailable(op, "patient directory unavailable", readErr)
	}
	if err := r.dir.Upsert(ctx, merged); err != nil {
		r.logger.Error().Err(err).Str("phone", merged.Phone).Msg("directory upsert failed")
		return merged, apperrors.ProviderUnavailable(op, "patient directory unavailable", err)
	}
	return merged, nil
}
