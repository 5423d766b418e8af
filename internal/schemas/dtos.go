package schemas

// UserDTO is the public view of an account. It never carries the credential
// or any OTP / reset material.
type UserDTO struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"isVerified"`
}

// AuthResponseDTO is returned by verify-otp, login and admin-login.
type AuthResponseDTO struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Token   string  `json:"token"`
	User    UserDTO `json:"user"`
}

// RegisterResponseDTO is returned by the first registration step. The OTP
// itself never appears in a response.
type RegisterResponseDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
}

// MessageDTO is the generic success envelope.
type MessageDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PartyDTO identifies either side of a listing: a role profile plus the
// public identity behind it.
type PartyDTO struct {
	ProfileID string `json:"profileId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// MedicineDTO is a listing with its parties populated.
type MedicineDTO struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Expiry      string    `json:"expiry"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	Donor       *PartyDTO `json:"donor,omitempty"`
	Receiver    *PartyDTO `json:"receiver,omitempty"`
	RequestedBy *PartyDTO `json:"requestedBy,omitempty"`
	CreatedAt   string    `json:"createdAt"`
}

// MedicineResponseDTO wraps a listing mutation result.
type MedicineResponseDTO struct {
	Message  string      `json:"message"`
	Medicine MedicineDTO `json:"medicine"`
}

// ReviewDTO is a single review with its author resolved.
type ReviewDTO struct {
	ID        string    `json:"_id"`
	DonorID   string    `json:"donorId"`
	Author    *PartyDTO `json:"author,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Approved  bool      `json:"isApproved"`
	CreatedAt string    `json:"createdAt"`
}

// ProfileDTO is the authenticated user's own profile view.
type ProfileDTO struct {
	User           UserDTO `json:"user"`
	Phone          string  `json:"phone"`
	ProfilePicture string  `json:"profilePicture"`
	ProfileID      string  `json:"profileId,omitempty"`
	Association    string  `json:"association,omitempty"`
}

// UploadPhotoResponseDTO acknowledges a stored profile photo.
type UploadPhotoResponseDTO struct {
	Message        string `json:"message"`
	ProfilePicture string `json:"profilePicture"`
}

// AdminUserDTO is the back-office view of an account.
type AdminUserDTO struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"isVerified"`
	CreatedAt  string `json:"createdAt"`
}

// AdminStatsDTO carries the back-office aggregate counts.
type AdminStatsDTO struct {
	Donors    int `json:"donors"`
	Receivers int `json:"receivers"`
	Medicines int `json:"medicines"`
	Reviews   int `json:"reviews"`
	Users     int `json:"users"`
}

// HomeStatsDTO is the public landing-page aggregate.
type HomeStatsDTO struct {
	TotalDonors          int `json:"totalDonors"`
	TotalReceivers       int `json:"totalReceivers"`
	TotalApprovedReviews int `json:"totalApprovedReviews"`
}

// HomeStatsResponseDTO wraps HomeStatsDTO the way the frontend expects it.
type HomeStatsResponseDTO struct {
	Success bool         `json:"success"`
	Stats   HomeStatsDTO `json:"stats"`
}

// MetadataDTO describes the running API version.
type MetadataDTO struct {
	ApiVersion string `json:"apiVersion"`
	ApiName    string `json:"apiName"`
}

// PaginatedResponse is a generic offset/limit page of records.
type PaginatedResponse struct {
	Records    interface{} `json:"records"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination describes the window of a PaginatedResponse.
type Pagination struct {
	Offset  int `json:"offset"`
	Limit   int `json:"limit"`
	Records int `json:"records"`
}
