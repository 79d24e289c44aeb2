// Package validation builds the request validator shared by the REST and
// realtime surfaces.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xiaot623/roadchat/internal/domain"
)

// Validator checks request DTOs against their validate tags.
type Validator struct {
	v *validator.Validate
}

// New returns a validator with the chatid tag registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("chatid", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseConversationID(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator. Failures wrap domain.ErrValidation
// and name the offending fields.
func (v *Validator) Validate(i any) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: invalid %s", domain.ErrValidation, strings.Join(fields, ", "))
}
