package ai

import "context"

// mockDriver echoes the input. Used for offline dry runs.
type mockDriver struct{}

func (mockDriver) complete(_ context.Context, _, text string) (string, error) {
	return text, nil
}
