package helpers

import (
	"reflect"
	"strings"

	"siopverifier/pkg/logger"
	"siopverifier/pkg/model"

	"github.com/go-playground/validator/v10"
)

// NewValidator creates a new validator
func NewValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]

		if name == "-" {
			return ""
		}

		return name
	})

	return validate, nil
}

// Check validates cfg and logs the outcome.
func Check(cfg *model.Cfg, log *logger.Log) error {
	validate, err := NewValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(cfg); err != nil {
		log.Info("config validation failed")
		return NewErrorFromError(err)
	}

	return nil
}

// CheckSimple checks for validation error with a simpler signature
func CheckSimple(s any) error {
	validate, err := NewValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(s); err != nil {
		return NewErrorFromError(err)
	}

	return nil
}
