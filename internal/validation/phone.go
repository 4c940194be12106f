package validation

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone проверяет номер телефона и приводит его к формату E.164.
// region задаёт страну для номеров без международного префикса, например "RU".
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: phone is required", ErrInvalid)
	}

	num, err := libphonenumber.Parse(phone, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: phone %q: %v", ErrInvalid, phone, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("%w: phone %q is not a valid number", ErrInvalid, phone)
	}

	return libphonenumber.Format(num, libphonenumber.E164), nil
}
