package coreset

import "fmt"

// ConfigurationError mirrors pkg/clustream's error of the same name for
// the reducer's own fatal preconditions: k <= 0, or both input sets
// empty.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}
