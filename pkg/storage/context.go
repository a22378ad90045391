// Package storage provides the backend-keyed storage context pool and the
// slab-index metadata resolved through it. A storage context represents a
// connection to one distinct external target — a file tree, an S3 bucket or
// a GCS bucket — and is shared by all serving workers, so implementations
// must be safe for concurrent use.
package storage

import (
	"context"
	"fmt"
)

// Kind identifies a storage backend family.
type Kind string

const (
	// KindFile reads slabs from a local file tree
	KindFile Kind = "file"
	// KindS3 reads slabs from an S3 bucket
	KindS3 Kind = "s3"
	// KindGCS reads slabs from a Google Cloud Storage bucket
	KindGCS Kind = "gcs"
)

// Valid reports whether k names a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindFile, KindS3, KindGCS:
		return true
	default:
		return false
	}
}

// Descriptor identifies one distinct storage target by value. Two
// descriptors with equal kind and location name the same target and share
// one context.
type Descriptor struct {
	Kind     Kind
	Location string
}

// String renders the descriptor as kind://location.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s://%s", d.Kind, d.Location)
}

// Context is a shared handle onto one storage target. Implementations are
// internally safe for concurrent use by multiple workers.
type Context interface {
	// Kind returns the backend family of this context.
	Kind() Kind
	// Location returns the backend target this context is bound to.
	Location() string
	// Read returns the whole object at path.
	Read(ctx context.Context, path string) ([]byte, error)
	// ReadRange returns length bytes starting at offset within the object
	// at path.
	ReadRange(ctx context.Context, path string, offset uint64, length uint32) ([]byte, error)
	// Close releases the context. Called exactly once at pool teardown.
	Close() error
}
