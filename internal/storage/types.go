package storage

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// BlobInfo describes a stored document without its content.
type BlobInfo struct {
	Key     string    // Document key within its namespace
	Size    int64     // Size in bytes
	ModTime time.Time // Time of the last Put
}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateKey rejects namespaces and keys that are not safe to use as file
// names, table values or redis hash fields.
func ValidateKey(namespace, key string) error {
	if !identPattern.MatchString(namespace) {
		return fmt.Errorf("%w: namespace %q", ErrInvalidInput, namespace)
	}
	if !identPattern.MatchString(key) {
		return fmt.Errorf("%w: key %q", ErrInvalidInput, key)
	}
	return nil
}

// ValidateNamespace is ValidateKey for namespace-only operations.
func ValidateNamespace(namespace string) error {
	if !identPattern.MatchString(namespace) {
		return fmt.Errorf("%w: namespace %q", ErrInvalidInput, namespace)
	}
	return nil
}
