package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

type ProfileHdl interface {
	GetProfile(ctx *gin.Context)
	UpdateProfile(ctx *gin.Context)
	UploadPhoto(ctx *gin.Context)
}

type ProfileHandler struct {
	DatabaseManager managers.DatabaseMgr
	StorageManager  managers.StorageMgr
}

func NewProfileHandler(databaseManager managers.DatabaseMgr, storageManager managers.StorageMgr) ProfileHdl {
	return &ProfileHandler{
		DatabaseManager: databaseManager,
		StorageManager:  storageManager,
	}
}

// Profile photos above this size are rejected before touching storage.
const maxPhotoSize = 5 << 20

// GetProfile returns the caller's account together with its role profile.
func (handler *ProfileHandler) GetProfile(ctx *gin.Context) {
	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	pool := handler.DatabaseManager.GetPool()

	var name, email, phone, profilePictureURL, association string
	var role schemas.Role
	var verifiedAt pgtype.Timestamptz

	queryString := "SELECT u.name, u.email, u.phone, u.role, u.profile_picture_url, u.verified_at, COALESCE(dp.association, rp.association, '') " +
		"FROM medicare_schema.users u " +
		"LEFT JOIN medicare_schema.donor_profiles dp ON u.donor_profile_id = dp.profile_id " +
		"LEFT JOIN medicare_schema.receiver_profiles rp ON u.receiver_profile_id = rp.profile_id " +
		"WHERE u.user_id = $1"
	err := pool.QueryRow(ctx, queryString, authCtx.UserID).Scan(&name, &email, &phone, &role, &profilePictureURL, &verifiedAt, &association)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) && authCtx.Role == schemas.RoleAdmin {
			// Standalone admins have no users row; serve the resolved identity.
			response := &schemas.ProfileDTO{
				User: schemas.UserDTO{
					ID:         authCtx.UserID,
					Name:       authCtx.Name,
					Email:      authCtx.Email,
					Role:       schemas.RoleAdmin,
					IsVerified: true,
				},
			}
			utils.WriteAndLogResponse(ctx, response, http.StatusOK)
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.ProfileNotFound, http.StatusNotFound, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	response := &schemas.ProfileDTO{
		User: schemas.UserDTO{
			ID:         authCtx.UserID,
			Name:       name,
			Email:      email,
			Role:       role,
			IsVerified: verifiedAt.Valid,
		},
		Phone:          phone,
		ProfilePicture: profilePictureURL,
		ProfileID:      authCtx.ProfileID,
		Association:    association,
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// UpdateProfile edits name, phone and association. Empty fields are left
// untouched; association lands on the caller's role-profile row.
func (handler *ProfileHandler) UpdateProfile(ctx *gin.Context) {
	updateRequest, ok := utils.GetSanitizedPayload[*schemas.UpdateProfileRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	queryString := "UPDATE medicare_schema.users SET name = COALESCE(NULLIF($1, ''), name), phone = COALESCE(NULLIF($2, ''), phone) WHERE user_id = $3"
	commandTag, err := tx.Exec(ctx, queryString, updateRequest.Name, updateRequest.Phone, authCtx.UserID)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if commandTag.RowsAffected() == 0 {
		utils.WriteAndLogError(ctx, schemas.ProfileNotFound, http.StatusNotFound, errors.New("account gone"))
		return
	}

	if updateRequest.Association != "" && authCtx.ProfileID != "" {
		profileTable := "medicare_schema.donor_profiles"
		if authCtx.Role == schemas.RoleReceiver {
			profileTable = "medicare_schema.receiver_profiles"
		}

		queryString = "UPDATE " + profileTable + " SET association = $1 WHERE profile_id = $2"
		if _, err = tx.Exec(ctx, queryString, updateRequest.Association, authCtx.ProfileID); err != nil {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
			return
		}
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.MessageDTO{
		Success: true,
		Message: "Profile updated successfully",
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// UploadPhoto stores the multipart profile picture in object storage and
// saves its public URL on the account.
func (handler *ProfileHandler) UploadPhoto(ctx *gin.Context) {
	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	fileHeader, err := ctx.FormFile("profilePicture")
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.FileUploadError, http.StatusBadRequest, err)
		return
	}

	if fileHeader.Size > maxPhotoSize {
		utils.WriteAndLogError(ctx, schemas.FileUploadError, http.StatusBadRequest, errors.New("file too large"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		utils.WriteAndLogError(ctx, schemas.FileUploadError, http.StatusBadRequest, errors.New("not an image"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.FileUploadError, http.StatusInternalServerError, err)
		return
	}
	defer file.Close()

	key := authCtx.UserID + "/" + uuid.New().String() + filepath.Ext(fileHeader.Filename)
	url, err := handler.StorageManager.UploadProfilePicture(ctx, key, file, fileHeader.Size, contentType)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.FileUploadError, http.StatusInternalServerError, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	queryString := "UPDATE medicare_schema.users SET profile_picture_url = $1 WHERE user_id = $2"
	if _, err = pool.Exec(ctx, queryString, url, authCtx.UserID); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	response := &schemas.UploadPhotoResponseDTO{
		Message:        "Profile photo uploaded successfully",
		ProfilePicture: url,
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}
