package transport

// ChangeStatusRequest is the request body for a deal status transition.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft submitted in_progress approved declined funded cancelled"`
}

// LogCommunicationRequest records a touchpoint on the deal.
type LogCommunicationRequest struct {
	CommType  string  `json:"commType" validate:"required,oneof=call email sms"`
	Direction string  `json:"direction" validate:"required,oneof=inbound outbound"`
	Subject   *string `json:"subject,omitempty" validate:"omitempty,max=200"`
	Body      string  `json:"body" validate:"required,min=1,max=5000"`
}

// AddNoteRequest appends a note to the deal's activity log.
type AddNoteRequest struct {
	Note string `json:"note" validate:"required,min=1,max=5000"`
}
