package models

import "time"

// Ad is a classified listing owned by the user that created it.
//
// Approved and Views are persisted for compatibility with existing records but
// nothing in the API writes them after creation.
type Ad struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	Age         *int      `json:"age"`
	ContactInfo *string   `json:"contact_info"`
	Images      []string  `json:"images"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	Approved    bool      `json:"approved"`
	Views       int       `json:"views"`
}

// AdPatch is a partial update. A nil field was either omitted or sent as null
// and leaves the stored value untouched.
//
// Owner, timestamps, moderation state and counters have no field here, so
// they cannot be changed through a patch.
type AdPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Location    *string   `json:"location"`
	Age         *int      `json:"age"`
	ContactInfo *string   `json:"contact_info"`
	Images      *[]string `json:"images"`
}

// IsEmpty reports whether the patch carries no values.
func (p AdPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Location == nil && p.Age == nil && p.ContactInfo == nil && p.Images == nil
}

// Apply returns a copy of ad with every non-nil patch field overwritten.
func (p AdPatch) Apply(ad Ad) Ad {
	out := ad
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.Age != nil {
		age := *p.Age
		out.Age = &age
	}
	if p.ContactInfo != nil {
		contact := *p.ContactInfo
		out.ContactInfo = &contact
	}
	if p.Images != nil {
		out.Images = append([]string{}, (*p.Images)...)
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	return out
}
