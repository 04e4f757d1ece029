// Package common holds small shared value types used across the dockprep
// pipeline layers.  No behaviour beyond construction and validation lives
// here.
package common

import (
	"github.com/google/uuid"
)

// ID is a string alias for UUID v4, used for run and artifact identities.
type ID string

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// String returns the raw identifier text.
func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == "" }

// ProducerMessage is the transport-agnostic outbound message handed to the
// messaging layer.
type ProducerMessage struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}
