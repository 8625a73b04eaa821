package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/arklim/account-auth-service/internal/infra/security"
	"github.com/arklim/account-auth-service/internal/usecase"
)

const codeLength = 6

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator engine.
// It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return security.ValidatePassword(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("numericcode", func(fl validator.FieldLevel) bool {
			return isNumericCode(fl.Field().String())
		})
	})
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func isNumericCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// bindJSON decodes the body into req and turns binding failures into a
// validation error naming the first offending field.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &usecase.Error{
			Kind:    usecase.KindValidation,
			Message: validationMessage(fe),
			Field:   fe.Field(),
			Err:     err,
		}
	}

	return &usecase.Error{
		Kind:    usecase.KindValidation,
		Message: "Invalid request body",
		Err:     err,
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "strongpassword":
		value, _ := fe.Value().(string)
		if err := security.ValidatePassword(value); err != nil {
			return err.Error()
		}
		return "Password does not meet the requirements"
	case "numericcode":
		return fmt.Sprintf("%s must be a %d-digit number", fe.Field(), codeLength)
	case "eqfield":
		return "Passwords do not match"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
