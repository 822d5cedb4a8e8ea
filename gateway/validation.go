package gateway

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/example/storefront/pkg/apperr"
)

var (
	validationOnce sync.Once
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	itemIndex      = regexp.MustCompile(`\[(\d+)\]\.`)
)

// fieldMessages overrides the "<label> is required" default.
var fieldMessages = map[string]string{
	"Order items": "Order must contain at least one item",
	"Quantity":    "Quantity is required and must be a positive number",
}

// registerValidation teaches gin's validator the storefront labels and rules.
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
		_ = v.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation("whole", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return f == math.Trunc(f)
		})
	})
}

func describe(fe validator.FieldError) string {
	msg, ok := fieldMessages[fe.Field()]
	switch {
	case fe.Tag() == "lte":
		msg = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case ok:
	case fe.Tag() == "contact_email":
		msg = "Invalid email format"
	default:
		msg = fe.Field() + " is required"
	}

	if m := itemIndex.FindStringSubmatch(fe.Namespace()); m != nil {
		n, _ := strconv.Atoi(m[1])
		msg = fmt.Sprintf("Item %d: %s", n+1, msg)
	}
	return msg
}

// bindJSON decodes and validates the body, reporting every failed field.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		msgs := make([]string, len(fields))
		for i, fe := range fields {
			msgs[i] = describe(fe)
		}
		return apperr.Validation(msgs[0], msgs...)
	}
	return apperr.Validation("Invalid request body")
}
