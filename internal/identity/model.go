package identity

import (
	"strings"
	"time"
)

type CustomerType string

const (
	// CustomerNew was found neither in the cache nor in the directory.
	CustomerNew CustomerType = "new"
	// CustomerExisting was found in the in-process cache.
	CustomerExisting CustomerType = "existing"
	// CustomerReturning was found only in the durable directory.
	CustomerReturning CustomerType = "returning"
	// CustomerUnknown means the directory could not be consulted.
	CustomerUnknown CustomerType = "unknown"
)

// PatientRecord is keyed by normalized phone. Records are created on the first
// booking and merged on every later one, never deleted.
type PatientRecord struct {
	Phone           string    `json:"phone"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	LastVisit       string    `json:"last_visit,omitempty"` // YYYY-MM-DD
	PreferredDoctor string    `json:"preferred_doctor,omitempty"`
	Department      string    `json:"department,omitempty"`
	Language        string    `json:"language,omitempty"`
	CustomerType    string    `json:"customer_type,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Merge returns r with every non-empty field of in applied on top. Phone and
// CreatedAt are never taken from in when r already has them.
func (r PatientRecord) Merge(in PatientRecord) PatientRecord {
	out := r
	if out.Phone == "" {
		out.Phone = in.Phone
	}
	overwrite(&out.Name, in.Name)
	overwrite(&out.Email, in.Email)
	overwrite(&out.LastVisit, in.LastVisit)
	overwrite(&out.PreferredDoctor, in.PreferredDoctor)
	overwrite(&out.Department, in.Department)
	overwrite(&out.Language, in.Language)
	overwrite(&out.CustomerType, in.CustomerType)
	overwrite(&out.Notes, in.Notes)
	if out.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}
	return out
}

func overwrite(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

var phoneStripper = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// NormalizePhone strips spaces, dashes, dots and parentheses. Nothing else is
// rewritten, so "+1 (555) 000-0000" and "+15550000000" are the same caller.
func NormalizePhone(phone string) string {
	return phoneStripper.Replace(strings.TrimSpace(phone))
}
