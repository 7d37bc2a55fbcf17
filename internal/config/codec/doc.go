// Package codec maps persisted configuration values to the values an edit
// surface works with, and back.
//
// A Codec[S, E] converts between a stored representation S (what is written
// to the backing store) and an edited representation E (what a form or a
// caller manipulates). Codecs are immutable and safe to share between
// entries.
//
// # Kinds
//
//   - Identity: S and E are the same type, no validation
//   - Range: ordered values bounded by a minimum and maximum
//   - Enum: a closed set of values stored by name
//   - List: element-wise codec over slices
//   - Bean: a struct stored as a string-keyed map
//   - Pattern: strings validated by a regular expression
//   - Duration: time.Duration stored as a duration string
//
// Extra edited-side checks are layered on with Chain.
//
// # Normalization
//
// Range checks run under a Policy. PolicyReject refuses out-of-range input
// with a ValidationError. PolicyClamp moves it to the nearest bound, so a
// successful Encode may return a value different from its input.
package codec
