// Package config fills configuration structs from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg, a pointer to a struct tagged with `env` and
// `envDefault`. Every bad variable is reported, not only the first.
func Load(cfg any) error {
	err := env.Parse(cfg)
	if err == nil {
		return nil
	}

	var agg env.AggregateError
	if errors.As(err, &agg) && len(agg.Errors) > 1 {
		msgs := make([]string, len(agg.Errors))
		for i, e := range agg.Errors {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("parse environment: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("parse environment: %w", err)
}
