package models

// ReportCreateRequest is the request body for POST /v1/reports.
type ReportCreateRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    *Point `json:"location" validate:"required"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
}

// Report is an incident report as returned by the API.
type Report struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Location    Point     `json:"location"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	AudioURL    string    `json:"audioUrl,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// ReportList is the response for GET /v1/reports.
type ReportList struct {
	Items  []Report  `json:"items"`
	Center Point     `json:"center"`
	Radius float64   `json:"radius"`
	Since  Timestamp `json:"since"`
}
