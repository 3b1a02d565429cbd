package emergency

import "context"

// Repository defines the interface for contact and alert persistence.
type Repository interface {
	// Contacts returns the user's trusted contacts in saved order.
	Contacts(ctx context.Context, userID string) ([]Contact, error)

	// ReplaceContacts replaces the user's trusted contacts.
	ReplaceContacts(ctx context.Context, userID string, contacts []Contact) error

	// CreateAlert stores a new alert.
	CreateAlert(ctx context.Context, alert *Alert) error

	// GetAlert retrieves an alert by ID.
	GetAlert(ctx context.Context, id string) (*Alert, error)
}
