// Package schemas defines the request structures for the various operations of the application.
package schemas

// RegistrationRequest starts the two-step registration and triggers the OTP mail.
// Role is restricted to the self-service roles; admins are provisioned by other admins.
type RegistrationRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
	Password string `json:"password" validate:"required,min=6,password_validation"`
	Role     string `json:"role" validate:"required,oneof=donor receiver"`
}

// VerifyOTPRequest finalizes registration with the emailed 6-digit code.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

// LoginRequest authenticates a verified account by email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginRequest authenticates against the admin role or the separate
// administrator store.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest starts the password recovery flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest carries the new password; the raw reset token travels
// in the URL path.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,password_validation"`
}

// CreateMedicineRequest creates a new listing. Expiry is an RFC 3339 date or
// datetime string and is parsed server-side.
type CreateMedicineRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Expiry   string `json:"expiry" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreateReviewRequest is receiver feedback about a donor.
type CreateReviewRequest struct {
	DonorID string `json:"donorId" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

// UpdateProfileRequest edits trivial account information. Empty fields are
// left unchanged. Association lives on the caller's role profile.
type UpdateProfileRequest struct {
	Name        string `json:"name" validate:"max=50"`
	Phone       string `json:"phone" validate:"max=20"`
	Association string `json:"association" validate:"max=100"`
}

// AdminCreateUserRequest provisions a user from the back office. The account
// is born verified.
type AdminCreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
	Password string `json:"password" validate:"required,min=6,password_validation"`
	Role     string `json:"role" validate:"required,oneof=donor receiver admin"`
}

// AdminUpdateUserRequest edits a user from the back office. Changing the role
// swaps the role profile.
type AdminUpdateUserRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=7,max=20"`
	Role  string `json:"role" validate:"required,oneof=donor receiver admin"`
}
