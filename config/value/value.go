// Package value provides typed configuration values that can be set from
// their string representation and validated.
package value

// Value is a configuration value backed by a field of the configuration data.
type Value interface {
	// String returns a string representation of the value.
	String() string

	// Set parses the string representation and stores the value. It returns
	// an error if the string can't be parsed.
	Set(string) error

	// Validate returns an error describing what's wrong with the current value.
	Validate() error

	// IsEmpty returns whether the value is the empty value of its type.
	IsEmpty() bool
}
