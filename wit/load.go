package wit

import (
	"io"
	"os"
)

// LoadWIT parses a WIT+ source file at path into a fully resolved
// [Resolve]. If path is "" or "-", it reads from os.Stdin.
func LoadWIT(path string) (*Resolve, error) {
	buf, err := readAll(path)
	if err != nil {
		return nil, err
	}
	return ParseWIT(buf)
}

func readAll(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
