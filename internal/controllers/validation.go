package controllers

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the domain tags to gin's validator and reports
// fields by their JSON names. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin binding engine is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerErr = errors.Join(
			v.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
				return models.ValidQuestionType(fl.Field().String())
			}),
			// Empty topic falls back to the default
			v.RegisterValidation("topic", func(fl validator.FieldLevel) bool {
				topic := fl.Field().String()
				return topic == "" || models.ValidTopic(topic)
			}),
			v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
				return models.ValidRole(fl.Field().String())
			}),
		)
	})
	return registerErr
}
