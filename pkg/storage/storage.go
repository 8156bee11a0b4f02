// Package storage defines the Sink interface that receives exported
// stories. Local writes into a directory; S3Store writes objects into a
// bucket of Amazon S3 or any S3-compatible store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName is returned for names that are empty or contain a path
// separator.
var ErrInvalidName = errors.New("storage: invalid name")

// Sink stores named documents.
//
// Names are flat: no directories, no separators. Implementations must be
// safe for concurrent use.
type Sink interface {
	// Put stores data under name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte, contentType string) error

	// Get returns the content stored under name. A missing name yields an
	// error wrapping os.ErrNotExist.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns all stored names in lexical order.
	List(ctx context.Context) ([]string, error)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
