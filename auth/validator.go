package auth

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"tink/errors"
)

var validate = validator.New()

// SessionRequest is what a facilitator submits to open a session.
// A nil DurationMinutes falls back to the configured default.
type SessionRequest struct {
	Title           string `validate:"required,max=200"`
	Description     string `validate:"max=2000"`
	DurationMinutes *int
	MaxParticipants int `validate:"omitempty,min=2,max=50"`
}

type JoinRequest struct {
	Name string `validate:"required,max=80"`
}

func ValidateSession(req SessionRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return mapValidationError(err)
	}
	if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
		return fmt.Errorf("%w: got %d", errors.ErrInvalidDuration, *req.DurationMinutes)
	}
	return nil
}

func ValidateJoin(req JoinRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return mapValidationError(err)
	}
	return nil
}

func mapValidationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	for _, fe := range fieldErrors {
		if fe.Tag() != "required" {
			continue
		}
		switch fe.Field() {
		case "Title":
			return errors.ErrEmptyTitle
		case "Name":
			return errors.ErrEmptyName
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrInvalidInput, fieldErrors)
}
