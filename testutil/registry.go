package testutil

import (
	"time"

	"github.com/skosovsky/draftset"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery enabled,
// suitable for tests.
func NewTestRegistry(tools ...draftset.Tool) *draftset.Registry {
	reg := draftset.NewRegistry(
		draftset.WithDefaultTimeout(30*time.Second),
		draftset.WithRecoverPanics(true),
	)
	for _, t := range tools {
		reg.Register(t)
	}
	return reg
}
