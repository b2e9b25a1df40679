// ABOUTME: Closed enum types for item category and status
// ABOUTME: Raw strings are parsed once at the boundary and rejected if unknown

package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnum is returned when a string is not a member of a closed enum set
var ErrInvalidEnum = errors.New("invalid enum value")

// ItemCategory classifies a lost/found item
type ItemCategory string

const (
	ItemCategoryElectronics ItemCategory = "ELECTRONICS"
	ItemCategoryBooks       ItemCategory = "BOOKS"
	ItemCategoryApparel     ItemCategory = "APPAREL"
	ItemCategoryAccessories ItemCategory = "ACCESSORIES"
	ItemCategoryDocuments   ItemCategory = "DOCUMENTS"
	ItemCategoryOther       ItemCategory = "OTHER"
)

// ItemCategories lists every valid category in display order
var ItemCategories = []ItemCategory{
	ItemCategoryElectronics,
	ItemCategoryBooks,
	ItemCategoryApparel,
	ItemCategoryAccessories,
	ItemCategoryDocuments,
	ItemCategoryOther,
}

// ItemStatus is where an item is in its lost/found lifecycle
type ItemStatus string

const (
	ItemStatusLost     ItemStatus = "LOST"
	ItemStatusFound    ItemStatus = "FOUND"
	ItemStatusReturned ItemStatus = "RETURNED"
)

// ItemStatuses lists every valid status
var ItemStatuses = []ItemStatus{
	ItemStatusLost,
	ItemStatusFound,
	ItemStatusReturned,
}

// ParseItemCategory parses a category case-insensitively.
// Returns an error wrapping ErrInvalidEnum for unknown values.
func ParseItemCategory(s string) (ItemCategory, error) {
	c := ItemCategory(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ItemCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: category %q", ErrInvalidEnum, s)
}

// ParseItemStatus parses a status case-insensitively.
// Returns an error wrapping ErrInvalidEnum for unknown values.
func ParseItemStatus(s string) (ItemStatus, error) {
	st := ItemStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ItemStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: status %q", ErrInvalidEnum, s)
}
