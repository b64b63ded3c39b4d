package domain

import (
	"encoding/json"
	"time"
)

// TagStatus represents the state of an express-toll tag.
type TagStatus string

const (
	TagStatusActive   TagStatus = "active"
	TagStatusInactive TagStatus = "inactive"
)

// Tag is a physical or virtual express-toll device, optionally linked to one plate.
type Tag struct {
	TagID         string          `json:"tagId"`
	Plate         *string         `json:"plate,omitempty"`
	Status        TagStatus       `json:"status"`
	PaymentMethod *string         `json:"paymentMethod,omitempty"`
	Config        json.RawMessage `json:"config,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsActive returns true if the tag can be used for express tolling.
func (t *Tag) IsActive() bool {
	return t.Status == TagStatusActive
}

// LinkedPlate returns the linked plate, or "" when the tag is unlinked.
func (t *Tag) LinkedPlate() string {
	if t.Plate == nil {
		return ""
	}
	return *t.Plate
}
