// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/furniture-store/internal/model"
)

const (
	maxNameLength       = 100
	maxCouponCodeLength = 50
	maxEmailLength      = 254
)

var (
	phonePattern      = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)
	postalPattern     = regexp.MustCompile(`^[0-9A-Za-z\-\s]{3,16}$`)
)

// IsValidEmail проверяет адрес электронной почты покупателя.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Имя вида "Иван <ivan@example.com>" не принимаем.
	return addr.Address == email
}

// IsValidName проверяет имя или фамилию: непустые, не длиннее 100 символов.
func IsValidName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && utf8.RuneCountInString(name) <= maxNameLength
}

// IsValidPhone проверяет телефон в формате E.164 (допускается без '+').
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// IsValidCouponCode проверяет код купона в каноническом (верхнем) регистре.
func IsValidCouponCode(code string) bool {
	return len(code) <= maxCouponCodeLength && couponCodePattern.MatchString(code)
}

// IsValidAmount проверяет денежную сумму: неотрицательная, не больше двух знаков после запятой.
func IsValidAmount(amount decimal.Decimal) bool {
	if amount.IsNegative() {
		return false
	}
	return amount.Equal(amount.Truncate(2))
}

// IsValidAddress проверяет, что заполнены улица, город и индекс.
func IsValidAddress(a model.Address) bool {
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" {
		return false
	}
	return postalPattern.MatchString(strings.TrimSpace(a.PostalCode))
}
