package specification

import "gorm.io/gorm"

// Specification is a composable query fragment. Repositories fold any
// number of them over the base query, so callers combine ownership,
// id and ordering filters without the repository growing a method per
// combination.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
