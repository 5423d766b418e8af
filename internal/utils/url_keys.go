package utils

const (
	// MedicineIdKey is the key for medicine IDs used in routing parameters.
	MedicineIdKey = "id"

	// UserIdKey is the key for user IDs used in routing parameters.
	UserIdKey = "id"

	// DonorIdKey is the key for donor profile IDs used in routing parameters.
	DonorIdKey = "donorId"

	// ResetTokenKey is the key for the raw password-reset token in routing parameters.
	ResetTokenKey = "token"

	// OffsetParamKey is the key for offset used in pagination query parameters.
	OffsetParamKey = "offset"

	// LimitParamKey is the key for limit used in pagination query parameters.
	LimitParamKey = "limit"
)
