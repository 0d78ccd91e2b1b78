package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/pkg/id"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Custom tags are registered in init() before the first call to Struct.
var v = validator.New()

func init() {
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return id.Valid(fl.Field().String())
	})
	_ = v.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		return domain.Kind(fl.Field().String()).Valid()
	})
}

// Struct validates the given struct using its validate tags.
// The returned error wraps domain.ErrValidation and lists the failing fields.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
	}
	return nil
}
