package model

import (
	"errors"
	"time"
)

// Item is a lost-or-found report.
type Item struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	CategoryID   *int64      `json:"category_id,omitempty"`
	Category     string      `json:"category"`
	Location     string      `json:"location"`
	DateOccurred string      `json:"date"`
	ImageURL     string      `json:"image,omitempty"`
	Type         string      `json:"type"`
	Status       string      `json:"status"`
	UserID       int64       `json:"user_id"`
	ContactInfo  ContactInfo `json:"contact_info"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty"`

	// Joined from the poster's profile (not always populated).
	Poster *Profile `json:"profile,omitempty"`
}

// ContactInfo is stored with the item at posting time.
type ContactInfo struct {
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// Item types.
const (
	ItemTypeLost  = "lost"
	ItemTypeFound = "found"
)

// Item statuses.
const (
	ItemStatusActive   = "active"
	ItemStatusResolved = "resolved"
	ItemStatusInactive = "inactive"
)

// DateLayout is the format of Item.DateOccurred.
const DateLayout = "2006-01-02"

// UncategorizedName is shown for items without a category.
const UncategorizedName = "Other"

// ErrInvalidTransition is returned for status changes outside the allowed set.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidItemType reports whether t is a known item type.
func ValidItemType(t string) bool {
	return t == ItemTypeLost || t == ItemTypeFound
}

// ValidItemStatus reports whether s is a known item status.
func ValidItemStatus(s string) bool {
	return s == ItemStatusActive || s == ItemStatusResolved || s == ItemStatusInactive
}

var transitions = map[string][]string{
	ItemStatusActive:   {ItemStatusResolved, ItemStatusInactive},
	ItemStatusInactive: {ItemStatusActive},
}

// NextStatuses lists the statuses an item in status from may move to.
func NextStatuses(from string) []string {
	return transitions[from]
}

// CheckTransition returns ErrInvalidTransition unless an item may move from
// status "from" to status "to". Resolved is terminal.
func CheckTransition(from, to string) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// CanModify reports whether a user may change or delete item: its owner or an admin.
func CanModify(userID int64, role string, item *Item) bool {
	return item != nil && (item.UserID == userID || RoleAtLeast(role, RoleAdmin))
}
