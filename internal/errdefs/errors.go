package errdefs

import "fmt"

// ConfigurationError reports an invalid constructor parameter. It is returned
// at setup time and is always fatal to the call that produced it.
type ConfigurationError struct {
	Component string
	Field     string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Component, e.Field, e.Reason)
}

// MetadataReadError reports that raw bytes for a coordinate could not be
// obtained from a metadata reader.
type MetadataReadError struct {
	Coordinates string
	Err         error
}

func (e *MetadataReadError) Error() string {
	return fmt.Sprintf("read metadata for %s: %v", e.Coordinates, e.Err)
}

func (e *MetadataReadError) Unwrap() error {
	return e.Err
}
