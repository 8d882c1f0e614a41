package model

// RawRecord is one pre-normalization row from a source adapter: a mapping
// from source-specific column names to raw cell values. It lives only for
// the duration of one adapter invocation.
type RawRecord map[string]string
