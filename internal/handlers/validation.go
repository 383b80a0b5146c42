package handlers

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	slashDatePattern = regexp.MustCompile(`^\d{2}/\d{2}/(\d{2}|\d{4})$`)

	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the custom binding rules to gin's validator.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		registerErr = v.RegisterValidation("slashdate", validateSlashDate)
	})
	return registerErr
}

// validateSlashDate accepts dd/mm/yy and dd/mm/yyyy.
func validateSlashDate(fl validator.FieldLevel) bool {
	return slashDatePattern.MatchString(fl.Field().String())
}
