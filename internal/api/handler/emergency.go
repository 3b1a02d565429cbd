package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
	"github.com/safewalk/safewalk/internal/emergency"
)

// EmergencyHandler handles trusted contact and panic endpoints.
type EmergencyHandler struct {
	emergency *emergency.Service
	logger    zerolog.Logger
}

// NewEmergencyHandler creates a new EmergencyHandler.
func NewEmergencyHandler(svc *emergency.Service, logger zerolog.Logger) *EmergencyHandler {
	return &EmergencyHandler{emergency: svc, logger: logger}
}

// ListContacts handles GET /v1/me/contacts.
func (h *EmergencyHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	contacts, err := h.emergency.Contacts(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load contacts")
		response.InternalError(w, r, "internal server error")
		return
	}
	response.JSON(w, r, http.StatusOK, models.ContactList{Contacts: toContactModels(contacts)})
}

// ReplaceContacts handles PUT /v1/me/contacts - replace the contact list.
func (h *EmergencyHandler) ReplaceContacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	var input models.ContactsUpdateRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	contacts := make([]emergency.Contact, len(input.Contacts))
	for i, c := range input.Contacts {
		contacts[i] = emergency.Contact{Type: emergency.ContactType(c.Type), Value: c.Value}
	}

	saved, err := h.emergency.SetContacts(r.Context(), userID, contacts)
	if err != nil {
		var ve *emergency.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(w, r, "validation failed", ve.Errors)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to save contacts")
		response.InternalError(w, r, "internal server error")
		return
	}
	response.JSON(w, r, http.StatusOK, models.ContactList{Contacts: toContactModels(saved)})
}

// RaisePanic handles POST /v1/panic. The alert is stored first; 202 means
// it was queued for delivery, 503 that it was stored but not queued.
func (h *EmergencyHandler) RaisePanic(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	var input models.PanicRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	alert, err := h.emergency.RaisePanic(r.Context(), userID, emergency.PanicInput{
		Location: input.Location.Coordinate(),
		Message:  input.Message,
		AudioURL: input.AudioURL,
	})
	if err != nil {
		var ve *emergency.ValidationError
		switch {
		case errors.As(err, &ve):
			response.BadRequest(w, r, "validation failed", ve.Errors)
		case errors.Is(err, emergency.ErrDispatchFailed):
			response.ServiceUnavailable(w, r, "alert "+alert.ID+" was saved but could not be dispatched")
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to raise panic alert")
			response.InternalError(w, r, "internal server error")
		}
		return
	}

	response.Accepted(w, r, "/v1/panic/"+alert.ID, newPanicAlert(alert))
}

// GetAlert handles GET /v1/panic/{alertId}.
func (h *EmergencyHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return
	}

	alert, err := h.emergency.GetAlert(r.Context(), userID, chi.URLParam(r, "alertId"))
	if err != nil {
		if errors.Is(err, emergency.ErrAlertNotFound) {
			response.NotFound(w, r, "alert not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load alert")
		response.InternalError(w, r, "internal server error")
		return
	}
	response.JSON(w, r, http.StatusOK, newPanicAlert(alert))
}

func toContactModels(contacts []emergency.Contact) []models.Contact {
	out := make([]models.Contact, len(contacts))
	for i, c := range contacts {
		out[i] = models.Contact{Type: string(c.Type), Value: c.Value}
	}
	return out
}

func newPanicAlert(a *emergency.Alert) models.PanicAlert {
	return models.PanicAlert{
		ID:        a.ID,
		Location:  models.PointFrom(a.Location),
		Message:   a.Message,
		AudioURL:  a.AudioURL,
		Contacts:  toContactModels(a.Contacts),
		CreatedAt: models.Timestamp(a.CreatedAt),
	}
}
