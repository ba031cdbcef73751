package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EPPOOptions is the shape of an optional on-disk override file for the
// EPPO provider's code-type allow-list.
//
//	allowTypes:
//	  - PFL
//	  - PST
type EPPOOptions struct {
	AllowTypes []string `yaml:"allowTypes"`
}

// LoadEPPOOptions reads path and returns its allow-list. A missing file
// is not an error: it means no override is configured and the caller
// should keep its environment-derived default.
func LoadEPPOOptions(path string) (*EPPOOptions, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read eppo options file: %w", err)
	}

	var opts EPPOOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parse eppo options file %s: %w", path, err)
	}
	for i, t := range opts.AllowTypes {
		opts.AllowTypes[i] = strings.TrimSpace(t)
	}
	return &opts, nil
}
