package httpapi

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type VerifyEmailRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type TripSnapshot struct {
	Title     *string            `json:"title,omitempty"`
	StartDate openapi_types.Date `json:"startDate"`
	EndDate   openapi_types.Date `json:"endDate"`
}

type ParticipantRecipient struct {
	Name  string              `json:"name"`
	Email openapi_types.Email `json:"email" validate:"required,email"`
}

type TripDatesRequest struct {
	TripID       string                 `json:"tripId" validate:"required"`
	Previous     TripSnapshot           `json:"previous"`
	CreatorEmail *openapi_types.Email   `json:"creatorEmail,omitempty" validate:"omitempty,email"`
	Participants []ParticipantRecipient `json:"participants,omitempty" validate:"omitempty,dive"`
}

type ParticipationRequestNotice struct {
	ID      string  `json:"id" validate:"required"`
	TripID  string  `json:"tripId" validate:"required"`
	UserID  string  `json:"userId" validate:"required"`
	Message *string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

type AcceptedResponse struct {
	Status string `json:"status"`
}

type RecipientFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type BatchResultResponse struct {
	Sent     int                `json:"sent"`
	Failed   int                `json:"failed"`
	Total    int                `json:"total"`
	Failures []RecipientFailure `json:"failures"`
}

type ReceiptResponse struct {
	Status     string `json:"status"`
	Provider   string `json:"provider,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}
