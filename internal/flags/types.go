package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// Flag is a boolean switch mirrored from ledger state for operators.
type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
