package util

import "strings"

// MaskPhone hides all but the last four digits of a phone number for log
// output. Phone numbers are personally identifying and must never appear
// unmasked in logs.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
