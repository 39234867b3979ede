package handler

import (
	stderrors "errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/meditrack/pkg/errors"
)

// BindError turns a gin binding failure into a validation error with one
// message per offending field.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation("malformed request body", nil, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name != "" {
			name = strings.ToLower(name[:1]) + name[1:]
		}
		switch fe.Tag() {
		case "required":
			fields[name] = "is required"
		default:
			fields[name] = "is invalid"
		}
	}
	return errors.Validation("invalid request", fields, err)
}
