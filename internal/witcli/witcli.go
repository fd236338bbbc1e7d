package witcli

import (
	"context"
	"fmt"
	"os"

	"github.com/colinrozzi/composite/internal/oci"
	"github.com/colinrozzi/composite/wit"
)

// LoadWIT loads a single [wit.Resolve] from path.
// If path is an OCI path, it pulls the artifact from the registry and
// parses the fetched bytes as WIT+ source.
// If path == "" or "-", it reads from stdin.
func LoadWIT(ctx context.Context, path string) (*wit.Resolve, error) {
	if oci.IsOCIPath(path) {
		fmt.Fprintf(os.Stderr, "Fetching OCI artifact %s\n", path)
		buf, err := oci.Pull(ctx, path)
		if err != nil {
			return nil, err
		}
		return wit.ParseWIT(buf)
	}
	return wit.LoadWIT(path)
}

// LoadPath parses paths and returns the first path.
// If paths is empty, returns "-".
// If paths has more than one element, returns an error.
func LoadPath(paths ...string) (string, error) {
	var path string
	switch len(paths) {
	case 0:
		path = "-"
	case 1:
		path = paths[0]
	default:
		return "", fmt.Errorf("found %d path arguments, expecting 0 or 1", len(paths))
	}
	return path, nil
}
