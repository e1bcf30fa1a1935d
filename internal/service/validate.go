package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/mbeoliero/parley/pkg/errcode"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest checks validate tags and reports the first failing field
func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			first := vErrs[0]
			return errcode.ErrInvalidParam.WithDetail("field [%s] failed rule [%s]", first.Field(), first.Tag())
		}
		return errcode.ErrInvalidParam.Wrap(err)
	}
	return nil
}

// asBizError unwraps a business error carried out of a transaction
func asBizError(err error) (*errcode.Error, bool) {
	var e *errcode.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
