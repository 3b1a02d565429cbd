// Package emergency manages trusted contacts and panic alerts.
package emergency

import (
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Errors.
var (
	ErrAlertNotFound = errors.New("alert not found")
	// ErrDispatchFailed means the alert was stored but could not be queued
	// for delivery to contacts.
	ErrDispatchFailed = errors.New("alert dispatch failed")
)

// JobTypePanicAlert is the worker job type carrying an Alert.
const JobTypePanicAlert = "panic_alert"

// DefaultMessage is used when a panic alert is raised without a message.
const DefaultMessage = "Emergency! Need help!"

// ContactType is how a trusted contact is reached.
type ContactType string

// Contact types.
const (
	ContactEmail ContactType = "email"
	ContactSMS   ContactType = "sms"
)

// Contact is a trusted contact.
type Contact struct {
	Type  ContactType `json:"type"`
	Value string      `json:"value"`
}

// Alert is a raised panic alert and the contacts it goes to.
type Alert struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Location  geo.Coordinate `json:"location"`
	Message   string         `json:"message"`
	AudioURL  string         `json:"audioUrl,omitempty"`
	Contacts  []Contact      `json:"contacts"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AlertMessage is the queue payload for a panic alert.
type AlertMessage struct {
	JobType string `json:"job_type"`
	Alert   *Alert `json:"alert"`
}
