package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

type AdminHdl interface {
	GetUsers(ctx *gin.Context)
	CreateUser(ctx *gin.Context)
	UpdateUser(ctx *gin.Context)
	DeleteUser(ctx *gin.Context)
	GetDonors(ctx *gin.Context)
	GetReceivers(ctx *gin.Context)
	GetMedicines(ctx *gin.Context)
	GetReviews(ctx *gin.Context)
	GetStats(ctx *gin.Context)
}

type AdminHandler struct {
	DatabaseManager managers.DatabaseMgr
}

func NewAdminHandler(databaseManager managers.DatabaseMgr) AdminHdl {
	return &AdminHandler{
		DatabaseManager: databaseManager,
	}
}

// GetUsers lists all accounts for the back office.
func (handler *AdminHandler) GetUsers(ctx *gin.Context) {
	offset, limit, err := utils.ParsePaginationParams(ctx)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	queryString := "SELECT user_id, name, email, phone, role, verified_at, created_at FROM medicare_schema.users ORDER BY created_at DESC"
	rows, err := pool.Query(ctx, queryString)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}
	defer rows.Close()

	users := make([]schemas.AdminUserDTO, 0)
	for rows.Next() {
		var user schemas.AdminUserDTO
		var verifiedAt pgtype.Timestamptz
		var createdAt time.Time

		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.Role, &verifiedAt, &createdAt); err != nil {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
			return
		}

		user.IsVerified = verifiedAt.Valid
		user.CreatedAt = createdAt.Format(time.RFC3339)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	utils.SendPaginatedResponse(ctx, users, offset, limit)
}

// CreateUser provisions an account from the back office. The account is born
// verified, with its role profile already linked.
func (handler *AdminHandler) CreateUser(ctx *gin.Context) {
	createRequest, ok := utils.GetSanitizedPayload[*schemas.AdminCreateUserRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(createRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InternalServerError, http.StatusInternalServerError, err)
		return
	}

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	userId := uuid.New().String()
	email := normalizeEmail(createRequest.Email)
	now := time.Now()

	queryString := "INSERT INTO medicare_schema.users (user_id, name, email, phone, password, role, profile_picture_url, verified_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	if _, err = tx.Exec(ctx, queryString, userId, createRequest.Name, email, createRequest.Phone,
		string(hashedPassword), createRequest.Role, "", now, now); err != nil {
		writeRegistrationError(ctx, err)
		return
	}

	if err = linkRoleProfile(ctx, tx, userId, schemas.Role(createRequest.Role)); err != nil {
		return
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.AdminUserDTO{
		ID:         userId,
		Name:       createRequest.Name,
		Email:      email,
		Phone:      createRequest.Phone,
		Role:       schemas.Role(createRequest.Role),
		IsVerified: true,
		CreatedAt:  now.Format(time.RFC3339),
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusCreated)
}

// UpdateUser edits an account from the back office. A role change swaps the
// role profile so the linkage stays consistent.
func (handler *AdminHandler) UpdateUser(ctx *gin.Context) {
	updateRequest, ok := utils.GetSanitizedPayload[*schemas.AdminUpdateUserRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	userId := ctx.Param(utils.UserIdKey)

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	var currentRole schemas.Role
	var donorProfileId, receiverProfileId *string

	queryString := "SELECT role, donor_profile_id, receiver_profile_id FROM medicare_schema.users WHERE user_id = $1"
	err := tx.QueryRow(ctx, queryString, userId).Scan(&currentRole, &donorProfileId, &receiverProfileId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.UserNotFound, http.StatusNotFound, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	newRole := schemas.Role(updateRequest.Role)

	queryString = "UPDATE medicare_schema.users SET name = $1, email = $2, phone = $3, role = $4 WHERE user_id = $5"
	if _, err = tx.Exec(ctx, queryString, updateRequest.Name, normalizeEmail(updateRequest.Email),
		updateRequest.Phone, newRole, userId); err != nil {
		writeRegistrationError(ctx, err)
		return
	}

	if newRole != currentRole {
		if err = unlinkRoleProfile(ctx, tx, userId, currentRole, donorProfileId, receiverProfileId); err != nil {
			return
		}
		if err = linkRoleProfile(ctx, tx, userId, newRole); err != nil {
			return
		}
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.MessageDTO{
		Success: true,
		Message: "User updated successfully",
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// DeleteUser removes an account. Role profiles and the listings hanging off
// them go with it through the schema's cascades.
func (handler *AdminHandler) DeleteUser(ctx *gin.Context) {
	userId := ctx.Param(utils.UserIdKey)

	pool := handler.DatabaseManager.GetPool()
	queryString := "DELETE FROM medicare_schema.users WHERE user_id = $1"
	commandTag, err := pool.Exec(ctx, queryString, userId)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if commandTag.RowsAffected() == 0 {
		utils.WriteAndLogError(ctx, schemas.UserNotFound, http.StatusNotFound, errors.New("user unknown"))
		return
	}

	response := &schemas.MessageDTO{
		Success: true,
		Message: "User deleted successfully",
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// GetDonors lists all donor profiles with their public identity.
func (handler *AdminHandler) GetDonors(ctx *gin.Context) {
	queryString := "SELECT dp.profile_id, u.name, u.email FROM medicare_schema.donor_profiles dp JOIN medicare_schema.users u ON dp.user_id = u.user_id ORDER BY dp.created_at DESC"
	handler.listParties(ctx, queryString)
}

// GetReceivers lists all receiver profiles with their public identity.
func (handler *AdminHandler) GetReceivers(ctx *gin.Context) {
	queryString := "SELECT rp.profile_id, u.name, u.email FROM medicare_schema.receiver_profiles rp JOIN medicare_schema.users u ON rp.user_id = u.user_id ORDER BY rp.created_at DESC"
	handler.listParties(ctx, queryString)
}

// GetMedicines lists every listing regardless of state.
func (handler *AdminHandler) GetMedicines(ctx *gin.Context) {
	offset, limit, err := utils.ParsePaginationParams(ctx)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	rows, err := pool.Query(ctx, listingQuery+" ORDER BY m.created_at DESC")
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	medicines, err := scanListings(rows)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	utils.SendPaginatedResponse(ctx, medicines, offset, limit)
}

// GetReviews lists every review, the pending ones included.
func (handler *AdminHandler) GetReviews(ctx *gin.Context) {
	offset, limit, err := utils.ParsePaginationParams(ctx)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	rows, err := pool.Query(ctx, reviewQuery+" ORDER BY r.created_at DESC")
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	reviews, err := scanReviews(rows)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	utils.SendPaginatedResponse(ctx, reviews, offset, limit)
}

// GetStats returns the back-office aggregate counts.
func (handler *AdminHandler) GetStats(ctx *gin.Context) {
	pool := handler.DatabaseManager.GetPool()

	var stats schemas.AdminStatsDTO
	queryString := "SELECT " +
		"(SELECT COUNT(*) FROM medicare_schema.donor_profiles), " +
		"(SELECT COUNT(*) FROM medicare_schema.receiver_profiles), " +
		"(SELECT COUNT(*) FROM medicare_schema.medicines), " +
		"(SELECT COUNT(*) FROM medicare_schema.reviews), " +
		"(SELECT COUNT(*) FROM medicare_schema.users)"
	if err := pool.QueryRow(ctx, queryString).Scan(&stats.Donors, &stats.Receivers, &stats.Medicines,
		&stats.Reviews, &stats.Users); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	utils.WriteAndLogResponse(ctx, &stats, http.StatusOK)
}

func (handler *AdminHandler) listParties(ctx *gin.Context, queryString string) {
	offset, limit, err := utils.ParsePaginationParams(ctx)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	rows, err := pool.Query(ctx, queryString)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}
	defer rows.Close()

	parties := make([]schemas.PartyDTO, 0)
	for rows.Next() {
		var party schemas.PartyDTO
		if err := rows.Scan(&party.ProfileID, &party.Name, &party.Email); err != nil {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
			return
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	utils.SendPaginatedResponse(ctx, parties, offset, limit)
}

// linkRoleProfile creates the role profile for donor or receiver accounts and
// points the matching linkage column at it. Admin accounts have no profile.
func linkRoleProfile(ctx *gin.Context, tx pgx.Tx, userId string, role schemas.Role) error {
	var profileTable, profileColumn string
	switch role {
	case schemas.RoleDonor:
		profileTable = "medicare_schema.donor_profiles"
		profileColumn = "donor_profile_id"
	case schemas.RoleReceiver:
		profileTable = "medicare_schema.receiver_profiles"
		profileColumn = "receiver_profile_id"
	default:
		return nil
	}

	profileId := uuid.New().String()
	queryString := "INSERT INTO " + profileTable + " (profile_id, user_id, created_at) VALUES ($1, $2, $3)"
	if _, err := tx.Exec(ctx, queryString, profileId, userId, time.Now()); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return err
	}

	queryString = "UPDATE medicare_schema.users SET " + profileColumn + " = $1 WHERE user_id = $2"
	if _, err := tx.Exec(ctx, queryString, profileId, userId); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return err
	}

	return nil
}

// unlinkRoleProfile drops the old role profile on a role change.
func unlinkRoleProfile(ctx *gin.Context, tx pgx.Tx, userId string, role schemas.Role, donorProfileId, receiverProfileId *string) error {
	var profileTable, profileColumn string
	var profileId *string
	switch role {
	case schemas.RoleDonor:
		profileTable = "medicare_schema.donor_profiles"
		profileColumn = "donor_profile_id"
		profileId = donorProfileId
	case schemas.RoleReceiver:
		profileTable = "medicare_schema.receiver_profiles"
		profileColumn = "receiver_profile_id"
		profileId = receiverProfileId
	default:
		return nil
	}

	if profileId == nil {
		return nil
	}

	queryString := "UPDATE medicare_schema.users SET " + profileColumn + " = NULL WHERE user_id = $1"
	if _, err := tx.Exec(ctx, queryString, userId); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return err
	}

	queryString = "DELETE FROM " + profileTable + " WHERE profile_id = $1"
	if _, err := tx.Exec(ctx, queryString, *profileId); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return err
	}

	return nil
}
