package emergency

import (
	"context"
	"slices"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	contacts map[string][]Contact
	alerts   map[string]*Alert
}

// NewInMemoryRepository creates a new in-memory emergency repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		contacts: make(map[string][]Contact),
		alerts:   make(map[string]*Alert),
	}
}

// Contacts returns the user's trusted contacts.
func (r *InMemoryRepository) Contacts(_ context.Context, userID string) ([]Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contacts := slices.Clone(r.contacts[userID])
	if contacts == nil {
		contacts = []Contact{}
	}
	return contacts, nil
}

// ReplaceContacts replaces the user's trusted contacts.
func (r *InMemoryRepository) ReplaceContacts(_ context.Context, userID string, contacts []Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contacts[userID] = slices.Clone(contacts)
	return nil
}

// CreateAlert stores a new alert.
func (r *InMemoryRepository) CreateAlert(_ context.Context, alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *alert
	cpy.Contacts = slices.Clone(alert.Contacts)
	r.alerts[alert.ID] = &cpy
	return nil
}

// GetAlert retrieves an alert by ID.
func (r *InMemoryRepository) GetAlert(_ context.Context, id string) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	cpy := *alert
	cpy.Contacts = slices.Clone(alert.Contacts)
	return &cpy, nil
}

var _ Repository = (*InMemoryRepository)(nil)
