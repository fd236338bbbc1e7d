//go:build wasip1 || wasip2 || tinygo

package oci

import (
	"context"
	"errors"
)

// IsOCIPath checks if a given path is an OCI path
func IsOCIPath(path string) bool {
	return false
}

// Pull is unsupported under WASI/TinyGo builds: there is no outbound
// network or OCI registry client available in that environment.
func Pull(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("OCI not supported on WASI or TinyGo")
}
