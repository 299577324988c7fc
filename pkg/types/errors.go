package types

import "fmt"

// ConfigurationError indicates a required input is missing, a value is out of
// its valid range, or an enabled asset has an internally contradictory
// combination of settings. It is always fatal and is raised before any model
// is built.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Reason)
}

func configErrf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
