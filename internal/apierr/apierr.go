// Package apierr renders failures as the JSON bodies every endpoint returns:
// {"error": true, "detail": ...}.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Body is the failure payload.
type Body struct {
	Error  bool        `json:"error"`
	Detail interface{} `json:"detail"`
}

// Abort writes a failure body with the given status and stops the handler chain.
func Abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, Body{Error: true, Detail: detail})
}

// Validation writes a 422 carrying one entry per invalid field.
func Validation(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Body{Error: true, Detail: FieldErrors(err)})
}

// Field writes a 422 for a single field.
func Field(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Body{
		Error:  true,
		Detail: []FieldError{{Field: field, Message: message}},
	})
}

// FieldErrors flattens binding and validation errors.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}
	return []FieldError{{Field: "body", Message: err.Error()}}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min", "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "excludesall":
		return "contains forbidden characters"
	case "ne":
		return fmt.Sprintf("must not be %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

var registerOnce sync.Once

// UseRequestFieldNames makes validation errors report the form or JSON name of
// a field instead of its Go name.
func UseRequestFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"form", "json", "uri"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
}
