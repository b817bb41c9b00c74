package domain

import (
	"regexp"
	"strings"
)

var bdMobilePattern = regexp.MustCompile(`^(\+8801|01)[3-9]\d{8}$`)

// ValidPhone reports whether phone is a Bangladeshi mobile number,
// 01XXXXXXXXX or +8801XXXXXXXXX.
func ValidPhone(phone string) bool {
	return bdMobilePattern.MatchString(strings.TrimSpace(phone))
}

type District struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DeliveryCharge Money  `json:"delivery_charge"`
}
