// Package array provides row-partitioned matrices and vectors.
//
// Chunked inputs let lazy estimators emit one task per partition. A chunked
// value is immutable after construction and carries a content token, so two
// equal partitionings of equal data share graph keys.
package array
