package api

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	catalogCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,39}$`)

	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the catalogcode and datestr tags to gin's validator.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin binding does not use go-playground/validator")
			return
		}
		if err := v.RegisterValidation("catalogcode", validCatalogCode); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("datestr", validDate)
	})
	return registerErr
}

// validCatalogCode accepts ISBNs and copy codes: letters, digits, '_' and '-'.
func validCatalogCode(fl validator.FieldLevel) bool {
	return catalogCodePattern.MatchString(fl.Field().String())
}

func validDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
