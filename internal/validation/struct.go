package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid возвращается, если входные данные не прошли проверку.
var ErrInvalid = errors.New("validation failed")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct проверяет структуру по тегам validate. Ошибка оборачивает ErrInvalid
// и перечисляет поля, не прошедшие проверку.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
}
