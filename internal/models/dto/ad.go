package dto

import (
	"strings"

	"github.com/limpopoconnect/classifieds-api/internal/models"
)

type AdCreate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Age         *int     `json:"age"`
	ContactInfo *string  `json:"contact_info"`
	Images      []string `json:"images"`
}

func (a AdCreate) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"title", a.Title},
		{"description", a.Description},
		{"category", a.Category},
		{"location", a.Location},
	} {
		if err := requireText(f.name, f.value); err != nil {
			return err
		}
	}
	if a.Age != nil && *a.Age < 0 {
		return invalid("age", "must be greater than or equal to 0")
	}
	return validateImages(a.Images)
}

// ToAd builds the unsaved ad. Owner and server-managed fields are left for
// the caller to fill.
func (a AdCreate) ToAd() models.Ad {
	images := append([]string{}, a.Images...)
	return models.Ad{
		Title:       strings.TrimSpace(a.Title),
		Description: strings.TrimSpace(a.Description),
		Category:    strings.TrimSpace(a.Category),
		Location:    strings.TrimSpace(a.Location),
		Age:         a.Age,
		ContactInfo: a.ContactInfo,
		Images:      images,
	}
}

// AdUpdate decodes straight into the presence-aware patch; keys outside the
// patch, such as user_id or views, are dropped by the decoder.
type AdUpdate models.AdPatch

func (u AdUpdate) Validate() error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"title", u.Title},
		{"description", u.Description},
		{"category", u.Category},
		{"location", u.Location},
	} {
		if f.value == nil {
			continue
		}
		if err := requireText(f.name, *f.value); err != nil {
			return err
		}
	}
	if u.Age != nil && *u.Age < 0 {
		return invalid("age", "must be greater than or equal to 0")
	}
	if u.Images != nil {
		return validateImages(*u.Images)
	}
	return nil
}

// Patch returns the update as a patch with required text fields trimmed.
func (u AdUpdate) Patch() models.AdPatch {
	p := models.AdPatch(u)
	p.Title = trimmed(p.Title)
	p.Description = trimmed(p.Description)
	p.Category = trimmed(p.Category)
	p.Location = trimmed(p.Location)
	return p
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func validateImages(images []string) error {
	for _, img := range images {
		if strings.TrimSpace(img) == "" {
			return invalid("images", "must not contain empty urls")
		}
	}
	return nil
}
