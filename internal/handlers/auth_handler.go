// Package handlers implements the HTTP endpoints of the medicine donation
// service. Handlers receive their payloads pre-validated from the middleware
// and run their database work inside per-request transactions.
package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

type AuthHdl interface {
	Register(ctx *gin.Context)
	VerifyOTP(ctx *gin.Context)
	Login(ctx *gin.Context)
	AdminLogin(ctx *gin.Context)
	ForgotPassword(ctx *gin.Context)
	ResetPassword(ctx *gin.Context)
}

type AuthHandler struct {
	DatabaseManager managers.DatabaseMgr
	JWTManager      managers.JWTMgr
	MailManager     managers.MailMgr
	Validator       *utils.Validator
}

func NewAuthHandler(databaseManager managers.DatabaseMgr, jwtManager managers.JWTMgr, mailManager managers.MailMgr) AuthHdl {
	return &AuthHandler{
		DatabaseManager: databaseManager,
		JWTManager:      jwtManager,
		MailManager:     mailManager,
		Validator:       utils.GetValidator(),
	}
}

const otpValidity = 15 * time.Minute
const resetTokenValidity = time.Hour

// Register starts the two-step registration. A verified account with the
// same email is a conflict; an unverified one is overwritten in place so the
// user can retry with a fresh code.
func (handler *AuthHandler) Register(ctx *gin.Context) {
	registrationRequest, ok := utils.GetSanitizedPayload[*schemas.RegistrationRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	email := normalizeEmail(registrationRequest.Email)

	if os.Getenv("ENVIRONMENT") == "production" && !handler.Validator.VerifyEmail(email) {
		utils.WriteAndLogError(ctx, schemas.EmailUnreachable, http.StatusBadRequest, errors.New("email unreachable"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(registrationRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	var userId string
	var verifiedAt pgtype.Timestamptz

	queryString := "SELECT user_id, verified_at FROM medicare_schema.users WHERE email = $1"
	err = tx.QueryRow(ctx, queryString, email).Scan(&userId, &verifiedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if err == nil && verifiedAt.Valid {
		utils.WriteAndLogError(ctx, schemas.UserAlreadyExists, http.StatusConflict, errors.New("email already verified"))
		return
	}

	otp := generateOTP()
	otpExpiresAt := time.Now().Add(otpValidity)

	if err == nil {
		// Unverified leftover registration, overwrite it in place.
		queryString = "UPDATE medicare_schema.users SET name = $1, phone = $2, password = $3, role = $4, otp_code = $5, otp_expires_at = $6 WHERE user_id = $7"
		if _, err = tx.Exec(ctx, queryString, registrationRequest.Name, registrationRequest.Phone, string(hashedPassword),
			registrationRequest.Role, otp, otpExpiresAt, userId); err != nil {
			writeRegistrationError(ctx, err)
			return
		}
	} else {
		userId = uuid.New().String()
		queryString = "INSERT INTO medicare_schema.users (user_id, name, email, phone, password, role, profile_picture_url, otp_code, otp_expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"
		if _, err = tx.Exec(ctx, queryString, userId, registrationRequest.Name, email, registrationRequest.Phone,
			string(hashedPassword), registrationRequest.Role, "", otp, otpExpiresAt, time.Now()); err != nil {
			writeRegistrationError(ctx, err)
			return
		}
	}

	if err = handler.MailManager.SendOTPMail(email, registrationRequest.Name, otp); err != nil {
		utils.WriteAndLogError(ctx, schemas.EmailNotSent, http.StatusInternalServerError, err)
		return
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.RegisterResponseDTO{
		Success: true,
		Message: "Verification code sent to your email",
		UserID:  userId,
		Email:   email,
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusCreated)
}

// VerifyOTP finalizes registration: it marks the account verified, creates
// the role profile and signs the user in.
func (handler *AuthHandler) VerifyOTP(ctx *gin.Context) {
	verifyRequest, ok := utils.GetSanitizedPayload[*schemas.VerifyOTPRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	email := normalizeEmail(verifyRequest.Email)

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	var userId, name string
	var role schemas.Role
	var otpCode *string
	var otpExpiresAt, verifiedAt pgtype.Timestamptz

	queryString := "SELECT user_id, name, role, otp_code, otp_expires_at, verified_at FROM medicare_schema.users WHERE email = $1"
	err := tx.QueryRow(ctx, queryString, email).Scan(&userId, &name, &role, &otpCode, &otpExpiresAt, &verifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.UserNotFound, http.StatusNotFound, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	if verifiedAt.Valid {
		utils.WriteAndLogError(ctx, schemas.UserAlreadyExists, http.StatusConflict, errors.New("already verified"))
		return
	}

	if otpCode == nil || !otpExpiresAt.Valid || time.Now().After(otpExpiresAt.Time) {
		utils.WriteAndLogError(ctx, schemas.OTPExpired, http.StatusBadRequest, errors.New("otp expired"))
		return
	}

	if *otpCode != verifyRequest.OTP {
		utils.WriteAndLogError(ctx, schemas.OTPInvalid, http.StatusBadRequest, errors.New("otp mismatch"))
		return
	}

	profileId := uuid.New().String()
	profileColumn := "donor_profile_id"
	profileTable := "medicare_schema.donor_profiles"
	if role == schemas.RoleReceiver {
		profileColumn = "receiver_profile_id"
		profileTable = "medicare_schema.receiver_profiles"
	}

	queryString = fmt.Sprintf("INSERT INTO %s (profile_id, user_id, created_at) VALUES ($1, $2, $3)", profileTable)
	if _, err = tx.Exec(ctx, queryString, profileId, userId, time.Now()); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	queryString = fmt.Sprintf("UPDATE medicare_schema.users SET verified_at = $1, otp_code = NULL, otp_expires_at = NULL, %s = $2 WHERE user_id = $3", profileColumn)
	if _, err = tx.Exec(ctx, queryString, time.Now(), profileId, userId); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	token, err := handler.signToken(userId, role)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	// Best effort, verification already succeeded.
	if err := handler.MailManager.SendConfirmationMail(email, name); err != nil {
		utils.LogMessageWithFields(ctx, "warn", "Could not send confirmation mail: "+err.Error())
	}

	response := &schemas.AuthResponseDTO{
		Success: true,
		Message: "Account verified successfully",
		Token:   token,
		User: schemas.UserDTO{
			ID:         userId,
			Name:       name,
			Email:      email,
			Role:       role,
			IsVerified: true,
		},
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// Login authenticates a verified account. Unknown emails and wrong passwords
// share one generic error.
func (handler *AuthHandler) Login(ctx *gin.Context) {
	loginRequest, ok := utils.GetSanitizedPayload[*schemas.LoginRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	email := normalizeEmail(loginRequest.Email)
	pool := handler.DatabaseManager.GetPool()

	var userId, name, storedPassword string
	var role schemas.Role
	var verifiedAt pgtype.Timestamptz

	queryString := "SELECT user_id, name, password, role, verified_at FROM medicare_schema.users WHERE email = $1"
	err := pool.QueryRow(ctx, queryString, email).Scan(&userId, &name, &storedPassword, &role, &verifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.InvalidCredentials, http.StatusBadRequest, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	if !checkPassword(storedPassword, loginRequest.Password) {
		utils.WriteAndLogError(ctx, schemas.InvalidCredentials, http.StatusBadRequest, errors.New("password mismatch"))
		return
	}

	if !verifiedAt.Valid {
		utils.WriteAndLogError(ctx, schemas.UserNotVerified, http.StatusUnauthorized, errors.New("account not verified"))
		return
	}

	token, err := handler.signToken(userId, role)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}

	response := &schemas.AuthResponseDTO{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User: schemas.UserDTO{
			ID:         userId,
			Name:       name,
			Email:      email,
			Role:       role,
			IsVerified: true,
		},
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// AdminLogin authenticates back-office access. Admin accounts can live in the
// users table with the admin role or in the standalone admins table.
func (handler *AuthHandler) AdminLogin(ctx *gin.Context) {
	loginRequest, ok := utils.GetSanitizedPayload[*schemas.AdminLoginRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	email := normalizeEmail(loginRequest.Email)
	pool := handler.DatabaseManager.GetPool()

	var userId, name, storedPassword string

	queryString := "SELECT user_id, name, password FROM medicare_schema.users WHERE email = $1 AND role = 'admin' AND verified_at IS NOT NULL"
	err := pool.QueryRow(ctx, queryString, email).Scan(&userId, &name, &storedPassword)
	if errors.Is(err, pgx.ErrNoRows) {
		queryString = "SELECT admin_id, name, password FROM medicare_schema.admins WHERE email = $1"
		err = pool.QueryRow(ctx, queryString, email).Scan(&userId, &name, &storedPassword)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.InvalidCredentials, http.StatusBadRequest, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	if !checkPassword(storedPassword, loginRequest.Password) {
		utils.WriteAndLogError(ctx, schemas.InvalidCredentials, http.StatusBadRequest, errors.New("password mismatch"))
		return
	}

	token, err := handler.signToken(userId, schemas.RoleAdmin)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}

	response := &schemas.AuthResponseDTO{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User: schemas.UserDTO{
			ID:         userId,
			Name:       name,
			Email:      email,
			Role:       schemas.RoleAdmin,
			IsVerified: true,
		},
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// ForgotPassword issues a reset token. The response is identical whether the
// email exists or not, so the endpoint cannot be used to probe accounts.
func (handler *AuthHandler) ForgotPassword(ctx *gin.Context) {
	forgotRequest, ok := utils.GetSanitizedPayload[*schemas.ForgotPasswordRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	email := normalizeEmail(forgotRequest.Email)
	genericResponse := &schemas.MessageDTO{
		Success: true,
		Message: "If an account with that email exists, a password reset link has been sent",
	}

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	var userId, name string
	queryString := "SELECT user_id, name FROM medicare_schema.users WHERE email = $1"
	err := tx.QueryRow(ctx, queryString, email).Scan(&userId, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogResponse(ctx, genericResponse, http.StatusOK)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	rawToken, err := generateResetToken()
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}
	tokenHash := hashResetToken(rawToken)

	queryString = "UPDATE medicare_schema.users SET reset_token_hash = $1, reset_expires_at = $2 WHERE user_id = $3"
	if _, err = tx.Exec(ctx, queryString, tokenHash, time.Now().Add(resetTokenValidity), userId); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	resetURL := strings.TrimRight(os.Getenv("FRONTEND_URL"), "/") + "/reset-password/" + rawToken
	if err := handler.MailManager.SendPasswordResetMail(email, name, resetURL); err != nil {
		utils.LogMessageWithFields(ctx, "warn", "Could not send password reset mail: "+err.Error())
	}

	utils.WriteAndLogResponse(ctx, genericResponse, http.StatusOK)
}

// ResetPassword consumes a reset token. The lookup, expiry check and
// invalidation happen in one conditional update, so a token can never be
// spent twice.
func (handler *AuthHandler) ResetPassword(ctx *gin.Context) {
	resetRequest, ok := utils.GetSanitizedPayload[*schemas.ResetPasswordRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	rawToken := ctx.Param(utils.ResetTokenKey)
	if rawToken == "" {
		utils.WriteAndLogError(ctx, schemas.ResetTokenInvalid, http.StatusBadRequest, errors.New("token missing"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(resetRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	queryString := "UPDATE medicare_schema.users SET password = $1, reset_token_hash = NULL, reset_expires_at = NULL WHERE reset_token_hash = $2 AND reset_expires_at > NOW()"
	commandTag, err := pool.Exec(ctx, queryString, string(hashedPassword), hashResetToken(rawToken))
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if commandTag.RowsAffected() == 0 {
		utils.WriteAndLogError(ctx, schemas.ResetTokenInvalid, http.StatusBadRequest, errors.New("token unknown or expired"))
		return
	}

	response := &schemas.MessageDTO{
		Success: true,
		Message: "Password has been reset successfully",
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

func (handler *AuthHandler) signToken(userId string, role schemas.Role) (string, error) {
	claims := handler.JWTManager.GenerateClaims(userId, role)
	return handler.JWTManager.GenerateJWT(claims)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand is broken, nothing sensible left to do
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

func generateResetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// checkPassword verifies the provided password against the stored value.
// Hashes are bcrypt; values without a bcrypt prefix are legacy plaintext
// rows from the pre-hashing era.
func checkPassword(stored, provided string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)) == nil
	}
	return stored == provided
}

// writeRegistrationError maps unique constraint violations on the users table
// to the matching conflict error.
func writeRegistrationError(ctx *gin.Context, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "phone") {
			utils.WriteAndLogError(ctx, schemas.PhoneTaken, http.StatusConflict, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.EmailTaken, http.StatusConflict, err)
		}
		return
	}
	utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
}
