// Package fingerprint derives deterministic, content-based identifiers.
//
// Tokenize hashes a canonical encoding of its arguments with sha256. The
// encoding is type-tagged and length-prefixed so that distinct values cannot
// collide by concatenation, and it never depends on memory addresses or map
// iteration order. Equal content yields equal tokens; in particular two
// estimators of the same type with the same parameters and no fitted state
// share a token even when they are different instances.
package fingerprint
