package list

import (
	"golang.org/x/text/unicode/norm"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// Item is one entry of a list topic. The four kinds share this shape; only
// the JSON name of the identifier field differs (see Kind.IDField).
type Item struct {
	// Name is the display name, stored NFC-normalized.
	Name string

	// ID is the primary resource's topic id ("0.0.N"). Items are unique by
	// ID within one list.
	ID ledger.TopicID

	// Description is free text, may be empty.
	Description string

	// Media references an uploaded binary asset, or is empty.
	Media string
}

// Normalize returns a copy with the name NFC-normalized. Names arrive from
// user input paths that can produce mixed normalization forms; everything
// written to a topic goes through here first.
func (it Item) Normalize() Item {
	it.Name = norm.NFC.String(it.Name)
	return it
}

// Patch describes a partial item update. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Media       *string
}

// apply returns it with the patch's non-nil fields applied.
func (p Patch) apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Media != nil {
		it.Media = *p.Media
	}
	return it.Normalize()
}

// indexOf returns the position of the item with the given id, or -1.
func indexOf(items []Item, id ledger.TopicID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
