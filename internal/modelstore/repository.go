// Package modelstore persists trained policies as opaque named blobs.
package modelstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no artifact exists under a name.
var ErrNotFound = errors.New("model not found")

// ErrInvalidName is returned for empty artifact names.
var ErrInvalidName = errors.New("invalid model name")

// Artifact describes a stored blob.
type Artifact struct {
	Name      string
	Size      int
	UpdatedAt time.Time
}

// Repository stores and retrieves policy artifacts. Save overwrites any
// existing artifact with the same name.
type Repository interface {
	Save(ctx context.Context, name string, blob []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]Artifact, error)
}

func validateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	return nil
}
