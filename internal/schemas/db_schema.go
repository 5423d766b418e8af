// Package schemas defines the data structures
package schemas

import (
	"time"
)

// Role is the closed set of account roles. An empty role is a valid
// transient state between registration and OTP verification.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
	RoleAdmin    Role = "admin"
)

// Account represents the data model for a registered identity.
type Account struct {
	ID                string     `json:"id"`                  // Unique identifier for the account.
	Name              string     `json:"name"`                // Display name.
	Email             string     `json:"email"`               // Unique email, stored lowercase.
	Phone             string     `json:"phone"`               // Unique phone number.
	Password          string     `json:"password"`            // Password hash (bcrypt).
	Role              Role       `json:"role"`                // donor, receiver or admin; empty before assignment.
	ProfilePictureURL string     `json:"profile_picture_url"` // Public URL of the profile photo, if uploaded.
	VerifiedAt        *time.Time `json:"verified_at"`         // Set once the OTP has been verified.
	OTPCode           *string    `json:"otp_code"`            // Pending one-time code, cleared on use.
	OTPExpiresAt      *time.Time `json:"otp_expires_at"`      // Expiry instant of the pending code.
	ResetTokenHash    *string    `json:"reset_token_hash"`    // sha256 of the reset token, never the raw token.
	ResetExpiresAt    *time.Time `json:"reset_expires_at"`    // Expiry instant of the reset token.
	DonorProfileID    *string    `json:"donor_profile_id"`    // Set iff role is donor and the profile exists.
	ReceiverProfileID *string    `json:"receiver_profile_id"` // Set iff role is receiver and the profile exists.
	CreatedAt         *time.Time `json:"created_at"`          // Timestamp when the account was created.
}

// RoleProfile is the per-role extension record linked one-to-one to an Account.
// Medicines reference the profile id, not the account id.
type RoleProfile struct {
	ID          string     `json:"id"`          // Unique identifier for the profile.
	UserID      string     `json:"user_id"`     // Back-reference to the owning account.
	Association string     `json:"association"` // Optional organisation / NGO name.
	CreatedAt   *time.Time `json:"created_at"`
}

// MedicineStatus values mirror the workflow package's transition table.
type Medicine struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Expiry      time.Time  `json:"expiry"`
	Quantity    int        `json:"quantity"`
	Status      string     `json:"status"`
	DonorID     string     `json:"donor_id"`     // Owning donor profile.
	ReceiverID  *string    `json:"receiver_id"`  // Set once a request is approved.
	RequestedBy *string    `json:"requested_by"` // Set while a request is pending.
	CreatedAt   *time.Time `json:"created_at"`
}

// Review is receiver feedback about a donor profile. Only approved reviews
// appear in public aggregates; no endpoint here flips the flag.
type Review struct {
	ID        string     `json:"id"`
	AuthorID  string     `json:"author_id"` // Account of the receiver who wrote it.
	DonorID   string     `json:"donor_id"`  // Donor profile the review targets.
	Rating    int        `json:"rating"`    // 1-5.
	Comment   string     `json:"comment"`
	Approved  bool       `json:"approved"`
	CreatedAt *time.Time `json:"created_at"`
}

// AuthContext is resolved once by the authentication middleware and carried
// through the Gin context; handlers never re-inspect JWT claims. ProfileID is
// the donor or receiver profile id depending on Role and is the unit used for
// every ownership check.
type AuthContext struct {
	UserID    string
	Name      string
	Email     string
	Role      Role
	ProfileID string
}
