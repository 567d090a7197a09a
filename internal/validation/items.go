package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/maternar/sync-engine/internal/domain"
)

// ItemValidator performs structural validation of push items before any
// payload-level schema check runs
type ItemValidator struct {
	validate *validator.Validate
}

// NewItemValidator creates a validator with the entity-type rule registered
func NewItemValidator() *ItemValidator {
	v := validator.New()
	_ = v.RegisterValidation("entitytype", validateEntityType)
	return &ItemValidator{validate: v}
}

// ValidateItem checks the structural shape of a single push item. An
// unrecognized entity type is surfaced as ErrUnknownEntityType so callers
// can reject it at the protocol level instead of retrying.
func (iv *ItemValidator) ValidateItem(item domain.PushItem) error {
	if err := iv.validate.Struct(item); err != nil {
		if hasTag(err, "entitytype") {
			return fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, item.EntityType)
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, formatFieldErrors(err))
	}
	if item.Operation != domain.OpDelete && len(item.Data) == 0 {
		return fmt.Errorf("%w: %s requires a payload", domain.ErrValidation, item.Operation)
	}
	return nil
}

func validateEntityType(fl validator.FieldLevel) bool {
	return domain.EntityType(fl.Field().String()).Valid()
}

func hasTag(err error, tag string) bool {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, e := range validationErrors {
		if e.Tag() == tag {
			return true
		}
	}
	return false
}

// formatFieldErrors flattens validator errors into one storable message
// without leaking internal struct names
func formatFieldErrors(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request format"
	}

	msg := ""
	for i, e := range validationErrors {
		if i > 0 {
			msg += "; "
		}
		switch e.Tag() {
		case "required":
			msg += fmt.Sprintf("%s is required", e.Field())
		case "oneof":
			msg += fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
		case "gte":
			msg += fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		default:
			msg += fmt.Sprintf("%s is invalid", e.Field())
		}
	}
	return msg
}
