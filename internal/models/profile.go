package models

import (
	"fmt"
	"strings"
)

// PhonePrefix is prepended to the 10 significant digits of a local number.
const PhonePrefix = "+234"

// Profile is the Firestore "users" document: the display snapshot denormalized
// into alerts at creation time, plus the mutually-approved roster gating
// ghost-mode visibility. Keyed by Firebase UID.
type Profile struct {
	UID              string   `json:"uid" firestore:"uid"`
	Email            string   `json:"email" firestore:"email"`
	FullName         string   `json:"full_name" firestore:"fullName"`
	PhoneNumber      string   `json:"phone_number" firestore:"phoneNumber"`
	BloodType        string   `json:"blood_type,omitempty" firestore:"bloodType,omitempty"`
	EmergencyContact string   `json:"emergency_contact,omitempty" firestore:"emergencyContact,omitempty"`
	Roster           []string `json:"roster" firestore:"roster"`
}

// InRoster reports whether the given UID is an approved contact.
func (p *Profile) InRoster(uid string) bool {
	for _, r := range p.Roster {
		if r == uid {
			return true
		}
	}
	return false
}

// UpdateProfileRequest is the payload for profile updates. PhoneNumber carries
// exactly the 10 significant digits; the stored form is normalized via
// NormalizePhone before any remote write.
type UpdateProfileRequest struct {
	FullName         string `json:"full_name" validate:"required,min=4,max=80"`
	PhoneNumber      string `json:"phone_number" validate:"required,len=10,numeric"`
	BloodType        string `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- O+ O- AB+ AB-"`
	EmergencyContact string `json:"emergency_contact" validate:"omitempty,max=20"`
}

// NormalizePhone converts a raw phone entry into canonical +234 form.
// Accepts "8031234567", "08031234567" or an already-prefixed number, and
// rejects anything that does not leave exactly 10 digits.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	switch {
	case strings.HasPrefix(raw, PhonePrefix) && len(digits) == 13:
		digits = digits[3:]
	case strings.HasPrefix(digits, "0") && len(digits) == 11:
		digits = digits[1:]
	}

	if len(digits) != 10 {
		return "", fmt.Errorf("phone number must have exactly 10 digits, got %d", len(digits))
	}
	return PhonePrefix + digits, nil
}
