package schemas

// CustomError is the wire shape of every failure response. Code is stable
// across releases so the frontend can branch on it; Message is what gets
// shown to the user.
type CustomError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	BadRequest            = &CustomError{"ERR-000", "The request body is invalid. Please check the request body and try again."}
	UserAlreadyExists     = &CustomError{"ERR-001", "User already exists. Please login."}
	EmailTaken            = &CustomError{"ERR-002", "An account with this email already exists."}
	PhoneTaken            = &CustomError{"ERR-003", "An account with this phone number already exists."}
	UserNotFound          = &CustomError{"ERR-004", "User not found."}
	OTPExpired            = &CustomError{"ERR-005", "OTP has expired. Please request a new one."}
	OTPInvalid            = &CustomError{"ERR-006", "Invalid OTP. Please check your OTP and try again."}
	InvalidCredentials    = &CustomError{"ERR-007", "Invalid email or password"}
	UserNotVerified       = &CustomError{"ERR-008", "Please verify OTP before login"}
	Unauthorized          = &CustomError{"ERR-009", "The request is unauthorized. Please login to your account."}
	Forbidden             = &CustomError{"ERR-010", "You do not have permission to perform this action"}
	MedicineNotFound      = &CustomError{"ERR-011", "Medicine not found"}
	InvalidTransition     = &CustomError{"ERR-012", "The medicine is not in a status that allows this action"}
	NotListingOwner       = &CustomError{"ERR-013", "Not authorized to manage this medicine"}
	NotDesignatedReceiver = &CustomError{"ERR-014", "Not authorized to confirm receipt for this medicine"}
	ResetTokenInvalid     = &CustomError{"ERR-015", "Token invalid or expired"}
	DatabaseError         = &CustomError{"ERR-016", "A database error occurred. Please try again later."}
	EmailNotSent          = &CustomError{"ERR-017", "Error sending email. Please try again later."}
	InternalServerError   = &CustomError{"ERR-018", "An internal error occurred. Please try again later."}
	FileUploadError       = &CustomError{"ERR-019", "No file uploaded or the file could not be read."}
	ProfileNotFound       = &CustomError{"ERR-020", "Role profile not found for this account"}
	DonorNotFound         = &CustomError{"ERR-021", "Donor not found"}
	EmailUnreachable      = &CustomError{"ERR-022", "The email address appears to be unreachable."}
	InvalidExpiryDate     = &CustomError{"ERR-023", "The expiry date could not be parsed."}
)
