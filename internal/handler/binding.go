package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
)

// bindError turns a ShouldBindJSON failure into a validation error. Rule
// violations are re-checked with validate so the body names JSON fields.
func bindError(err error, validate func() error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && validate != nil {
		if verr := validate(); verr != nil {
			return verr
		}
	}
	return domain.NewValidationError("invalid request body: " + err.Error())
}
