// Package auth gates ReMind's caregiver/therapist-only routes (ingestion and
// experience composition) behind a bearer JWT, grounded on the teacher's
// jwt_service.go + refresh_token_store.go pair. Patient-facing routes never
// touch this package, matching the spec's silence on patient auth.
package auth

import (
	"time"
)

// Role distinguishes the two account kinds that may hold a token. ReMind has
// no patient accounts, so there is no corresponding patient role.
type Role string

const (
	RoleCaregiver Role = "caregiver"
	RoleTherapist Role = "therapist"
)

// Caregiver is an authenticated staff account. Unlike the teacher's domain.User,
// there is no OAuth/email-verification machinery here: one email, one bcrypt
// hash, one role.
type Caregiver struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
