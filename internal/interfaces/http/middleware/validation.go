package middleware

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// orderSNPattern matches platform order serial numbers, uppercase
// alphanumeric between 5 and 20 characters.
var orderSNPattern = regexp.MustCompile(`^[0-9A-Z]{5,20}$`)

// SetupValidator configures the binding validator with custom tags.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("order_sn", func(fl validator.FieldLevel) bool {
		return orderSNPattern.MatchString(fl.Field().String())
	})
}
