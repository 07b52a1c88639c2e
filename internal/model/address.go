package model

import "strings"

// Address - адрес доставки или оплаты, хранится внутри заказа.
type Address struct {
	Street     string `json:"street"`
	Unit       string `json:"unit,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

// Formatted возвращает адрес одной строкой.
func (a Address) Formatted() string {
	var sb strings.Builder
	sb.WriteString(a.Street)
	if unit := strings.TrimSpace(a.Unit); unit != "" {
		sb.WriteString(" ")
		sb.WriteString(unit)
	}
	sb.WriteString(", ")
	sb.WriteString(a.City)
	sb.WriteString(", ")
	sb.WriteString(a.State)
	sb.WriteString(" ")
	sb.WriteString(a.PostalCode)
	if country := strings.TrimSpace(a.Country); country != "" {
		sb.WriteString(", ")
		sb.WriteString(country)
	}
	return sb.String()
}
