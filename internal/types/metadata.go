package types

// Metadata is a map of string key-value pairs attached to records for
// gateway specific or caller specific context.
type Metadata map[string]string
