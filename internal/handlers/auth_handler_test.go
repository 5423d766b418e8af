package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("test.Password123"), bcrypt.MinCost)
	assert.NoError(t, err)

	assert.True(t, checkPassword(string(hash), "test.Password123"))
	assert.False(t, checkPassword(string(hash), "wrong.Password123"))

	// Rows from before password hashing was introduced store the plain value.
	assert.True(t, checkPassword("legacy-plain", "legacy-plain"))
	assert.False(t, checkPassword("legacy-plain", "something-else"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "maya@example.com", normalizeEmail("  Maya@Example.COM "))
	assert.Equal(t, "maya@example.com", normalizeEmail("maya@example.com"))
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		otp := generateOTP()
		assert.Len(t, otp, 6)
		for _, r := range otp {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}

func TestHashResetToken(t *testing.T) {
	first := hashResetToken("some-token")
	second := hashResetToken("some-token")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, hashResetToken("other-token"))
}

func TestParseExpiry(t *testing.T) {
	expiry, err := parseExpiry("2027-06-30")
	assert.NoError(t, err)
	assert.Equal(t, 2027, expiry.Year())
	assert.Equal(t, time.June, expiry.Month())

	expiry, err = parseExpiry("2027-06-30T12:30:00Z")
	assert.NoError(t, err)
	assert.Equal(t, 30, expiry.Day())

	_, err = parseExpiry("soon-ish")
	assert.Error(t, err)
}
