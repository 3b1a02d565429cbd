package models

// Contact is a trusted contact.
type Contact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ContactsUpdateRequest is the request body for PUT /v1/me/contacts.
type ContactsUpdateRequest struct {
	Contacts []Contact `json:"contacts"`
}

// ContactList is the response for the contacts endpoints.
type ContactList struct {
	Contacts []Contact `json:"contacts"`
}

// PanicRequest is the request body for POST /v1/panic.
type PanicRequest struct {
	Location *Point `json:"location" validate:"required"`
	Message  string `json:"message,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// PanicAlert is a raised panic alert.
type PanicAlert struct {
	ID        string    `json:"id"`
	Location  Point     `json:"location"`
	Message   string    `json:"message"`
	AudioURL  string    `json:"audioUrl,omitempty"`
	Contacts  []Contact `json:"contacts"`
	CreatedAt Timestamp `json:"createdAt"`
}
