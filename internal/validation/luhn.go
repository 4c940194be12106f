// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"strconv"
)

// orderNumberLen задаёт длину номера заказа: три цифры точки, восемь цифр счётчика и контрольная цифра.
const orderNumberLen = 12

// luhnSum считает сумму Луна. doubleFirst задаёт, удваивается ли самая правая цифра.
// Второе значение false, если в строке есть что-то кроме ASCII-цифр.
func luhnSum(digits string, doubleFirst bool) (int, bool) {
	if digits == "" {
		return 0, false
	}

	sum := 0
	double := doubleFirst
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		d := int(c - '0')
		if double {
			if d *= 2; d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum, true
}

// IsValidOrderNumber проверяет контрольную цифру номера по алгоритму Луна.
func IsValidOrderNumber(number string) bool {
	sum, ok := luhnSum(number, false)
	return ok && sum%10 == 0
}

// WithCheckDigit дописывает к числовой строке контрольную цифру Луна.
// Для пустой строки и строк с нецифровыми символами возвращает "".
func WithCheckDigit(base string) string {
	sum, ok := luhnSum(base, true)
	if !ok {
		return ""
	}
	return base + strconv.Itoa((10-sum%10)%10)
}

// FormatOrderNumber собирает номер заказа из номера точки и порядкового номера.
func FormatOrderNumber(outletID, seq int64) string {
	return WithCheckDigit(fmt.Sprintf("%03d%08d", outletID%1000, seq%100_000_000))
}
