package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// RecordID identifies a sub-record (party, property, waste entry) inside its
// aggregate. It stays stable while the surrounding collection is reordered.
type RecordID string

// NewRecordID returns a fresh random identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.NewString())
}

// ParseRecordID validates s as a non-nil UUID.
func ParseRecordID(s string) (RecordID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record id required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid record id")
	}
	if parsed == uuid.Nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record id must not be nil")
	}
	return RecordID(parsed.String()), nil
}

func (id RecordID) String() string {
	return string(id)
}

// IsNil reports whether the identifier is unset.
func (id RecordID) IsNil() bool {
	return id == ""
}
