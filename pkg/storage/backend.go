package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBlobExists is returned by Create when a blob with the same name already exists.
	ErrBlobExists = errors.New("blob already exists")
	// ErrBlobNotFound is returned when an id does not resolve to a blob.
	ErrBlobNotFound = errors.New("blob not found")
)

// BlobRef identifies a stored blob.
type BlobRef struct {
	ID        string
	Name      string
	UpdatedAt time.Time
}

// BlobQuery filters List. An empty Name matches every blob; Suffix further restricts by extension.
type BlobQuery struct {
	Container string
	Name      string
	Suffix    string
}

// Backend is the blob store the report repository writes to. List returns the most recently
// updated blobs first.
type Backend interface {
	List(ctx context.Context, query BlobQuery) ([]BlobRef, error)
	Create(ctx context.Context, name, container string, content []byte) (string, error)
	Update(ctx context.Context, id string, content []byte) error
	GetContent(ctx context.Context, id string) ([]byte, error)
}

// TransientError marks a backend failure that may succeed when retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err, or anything it wraps, is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func (q BlobQuery) matches(name string) bool {
	if q.Name != "" && name != q.Name {
		return false
	}
	if q.Suffix != "" && len(name) < len(q.Suffix) {
		return false
	}
	return q.Suffix == "" || name[len(name)-len(q.Suffix):] == q.Suffix
}
