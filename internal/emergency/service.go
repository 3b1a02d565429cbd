package emergency

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/geo"
)

// Validation constants.
const (
	MaxContacts      = 10
	MaxMessageLength = 500
)

// PanicInput is a panic alert as raised by a user.
type PanicInput struct {
	Location geo.Coordinate
	Message  string
	AudioURL string
}

// ServiceConfig holds configuration for the emergency service.
type ServiceConfig struct {
	Repository Repository

	// Publisher queues alerts for the worker. Without one, alerts are only stored.
	Publisher Publisher

	Logger zerolog.Logger
}

// Service provides contact and panic alert operations.
type Service struct {
	repo      Repository
	publisher Publisher
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new emergency service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		validate:  validator.New(),
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Contacts returns the user's trusted contacts.
func (s *Service) Contacts(ctx context.Context, userID string) ([]Contact, error) {
	return s.repo.Contacts(ctx, userID)
}

// SetContacts validates and replaces the user's trusted contacts.
func (s *Service) SetContacts(ctx context.Context, userID string, contacts []Contact) ([]Contact, error) {
	normalized := make([]Contact, len(contacts))
	for i, c := range contacts {
		normalized[i] = Contact{Type: c.Type, Value: strings.TrimSpace(c.Value)}
	}

	if fieldErrors := s.validateContacts(normalized); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if err := s.repo.ReplaceContacts(ctx, userID, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// RaisePanic stores an alert addressed to the user's contacts and queues it
// for delivery. When queueing fails the stored alert is returned together
// with an error wrapping ErrDispatchFailed.
func (s *Service) RaisePanic(ctx context.Context, userID string, input PanicInput) (*Alert, error) {
	if fieldErrors := validatePanicInput(&input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	contacts, err := s.repo.Contacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading contacts: %w", err)
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = DefaultMessage
	}

	alert := &Alert{
		ID:        "alt_" + uuid.New().String()[:22],
		UserID:    userID,
		Location:  input.Location,
		Message:   message,
		AudioURL:  input.AudioURL,
		Contacts:  contacts,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Str("alert_id", alert.ID).
		Str("user_id", userID).
		Int("contacts", len(contacts)).
		Logger()

	if s.publisher == nil {
		logger.Warn().Msg("no alert publisher configured, alert stored only")
		return alert, nil
	}

	if err := s.publisher.PublishAlert(ctx, alert); err != nil {
		logger.Error().Err(err).Msg("failed to publish panic alert")
		return alert, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	logger.Info().Msg("panic alert raised")
	return alert, nil
}

// GetAlert returns the user's alert by ID.
func (s *Service) GetAlert(ctx context.Context, userID, alertID string) (*Alert, error) {
	alert, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.UserID != userID {
		return nil, ErrAlertNotFound
	}
	return alert, nil
}

func (s *Service) validateContacts(contacts []Contact) []models.FieldError {
	var errs []models.FieldError

	if len(contacts) > MaxContacts {
		errs = append(errs, models.FieldError{Field: "contacts", Message: "must contain at most 10 contacts"})
		return errs
	}

	seen := make(map[Contact]bool, len(contacts))
	for i, c := range contacts {
		field := "contacts[" + strconv.Itoa(i) + "]"

		switch c.Type {
		case ContactEmail:
			if s.validate.Var(c.Value, "required,email,max=254") != nil {
				errs = append(errs, models.FieldError{Field: field + ".value", Message: "must be a valid email address"})
			}
		case ContactSMS:
			if s.validate.Var(c.Value, "required,e164") != nil {
				errs = append(errs, models.FieldError{Field: field + ".value", Message: "must be an E.164 phone number"})
			}
		default:
			errs = append(errs, models.FieldError{Field: field + ".type", Message: "must be one of: email, sms"})
		}

		if seen[c] {
			errs = append(errs, models.FieldError{Field: field, Message: "is a duplicate"})
		}
		seen[c] = true
	}

	return errs
}

func validatePanicInput(input *PanicInput) []models.FieldError {
	var errs []models.FieldError

	if !input.Location.Valid() {
		errs = append(errs, models.FieldError{Field: "location", Message: "must be a valid coordinate"})
	}
	if utf8.RuneCountInString(input.Message) > MaxMessageLength {
		errs = append(errs, models.FieldError{Field: "message", Message: "must be at most 500 characters"})
	}
	if input.AudioURL != "" {
		u, err := url.Parse(input.AudioURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, models.FieldError{Field: "audioUrl", Message: "must be an http or https URL"})
		}
	}

	return errs
}

// ValidationError contains field-level validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
