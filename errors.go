package catsort

import "errors"

var (
	// ErrIndexMissing is returned when the category index has not been
	// created. Run Setup first.
	ErrIndexMissing = errors.New("catsort: category index does not exist")

	// ErrProductNotFound is returned when a product ID does not exist.
	ErrProductNotFound = errors.New("catsort: product not found")

	// ErrCategoryNotFound is returned when a chosen category has no
	// backing row in the catalog store.
	ErrCategoryNotFound = errors.New("catsort: category not found")

	// ErrNoMatch is returned when no candidate category scores above
	// zero for a product.
	ErrNoMatch = errors.New("catsort: no suitable category match")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("catsort: invalid configuration")
)
