// Package seed embeds the mock data the dashboard starts with. Each loader
// reads the override path when one is given and the embedded file otherwise.
package seed

import (
	_ "embed"
	"fmt"
	"os"
)

var (
	//go:embed species.yaml
	speciesYAML []byte
	//go:embed reports.yaml
	reportsYAML []byte
	//go:embed users.yaml
	usersYAML []byte
)

func Species(override string) ([]byte, error) { return load(override, speciesYAML) }

func Reports(override string) ([]byte, error) { return load(override, reportsYAML) }

// Users returns demo accounts with plaintext passwords. They are hashed when
// registered.
func Users(override string) ([]byte, error) { return load(override, usersYAML) }

func load(path string, embedded []byte) ([]byte, error) {
	if path == "" {
		return embedded, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return data, nil
}
