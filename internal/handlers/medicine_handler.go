package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
	"medicare-server/internal/workflow"
)

type MedicineHdl interface {
	CreateMedicine(ctx *gin.Context)
	GetMedicines(ctx *gin.Context)
	GetMyMedicines(ctx *gin.Context)
	RequestMedicine(ctx *gin.Context)
	ApproveRequest(ctx *gin.Context)
	RejectRequest(ctx *gin.Context)
	ConfirmReceipt(ctx *gin.Context)
	DeleteMedicine(ctx *gin.Context)
}

type MedicineHandler struct {
	DatabaseManager managers.DatabaseMgr
}

func NewMedicineHandler(databaseManager managers.DatabaseMgr) MedicineHdl {
	return &MedicineHandler{
		DatabaseManager: databaseManager,
	}
}

// listingQuery resolves each listing together with the public identity of
// its donor and, when set, its receiver and pending requester.
const listingQuery = "SELECT m.medicine_id, m.name, m.expiry, m.quantity, m.status, m.created_at, " +
	"dp.profile_id, du.name, du.email, rp.profile_id, ru.name, ru.email, qp.profile_id, qu.name, qu.email " +
	"FROM medicare_schema.medicines m " +
	"JOIN medicare_schema.donor_profiles dp ON m.donor_id = dp.profile_id " +
	"JOIN medicare_schema.users du ON dp.user_id = du.user_id " +
	"LEFT JOIN medicare_schema.receiver_profiles rp ON m.receiver_id = rp.profile_id " +
	"LEFT JOIN medicare_schema.users ru ON rp.user_id = ru.user_id " +
	"LEFT JOIN medicare_schema.receiver_profiles qp ON m.requested_by = qp.profile_id " +
	"LEFT JOIN medicare_schema.users qu ON qp.user_id = qu.user_id"

// CreateMedicine creates a new listing owned by the calling donor. Listings
// always start out available.
func (handler *MedicineHandler) CreateMedicine(ctx *gin.Context) {
	createRequest, ok := utils.GetSanitizedPayload[*schemas.CreateMedicineRequest](ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, errors.New("payload missing"))
		return
	}

	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	expiry, err := parseExpiry(createRequest.Expiry)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.InvalidExpiryDate, http.StatusBadRequest, err)
		return
	}

	medicineId := uuid.New().String()
	createdAt := time.Now()

	pool := handler.DatabaseManager.GetPool()
	queryString := "INSERT INTO medicare_schema.medicines (medicine_id, name, expiry, quantity, status, donor_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)"
	if _, err := pool.Exec(ctx, queryString, medicineId, createRequest.Name, expiry, createRequest.Quantity,
		string(workflow.StatusAvailable), authCtx.ProfileID, createdAt); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	response := &schemas.MedicineResponseDTO{
		Message: "Medicine listed successfully",
		Medicine: schemas.MedicineDTO{
			ID:       medicineId,
			Name:     createRequest.Name,
			Expiry:   expiry.Format(time.RFC3339),
			Quantity: createRequest.Quantity,
			Status:   string(workflow.StatusAvailable),
			Donor: &schemas.PartyDTO{
				ProfileID: authCtx.ProfileID,
				Name:      authCtx.Name,
				Email:     authCtx.Email,
			},
			CreatedAt: createdAt.Format(time.RFC3339),
		},
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusCreated)
}

// GetMedicines returns all listings with their parties resolved.
func (handler *MedicineHandler) GetMedicines(ctx *gin.Context) {
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

// GetMyMedicines returns the calling donor's own listings.
func (handler *MedicineHandler) GetMyMedicines(ctx *gin.Context) {
	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	offset, limit, err := utils.ParsePaginationParams(ctx)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	rows, err := pool.Query(ctx, listingQuery+" WHERE m.donor_id = $1 ORDER BY m.created_at DESC", authCtx.ProfileID)
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

// RequestMedicine lets a receiver request an available listing.
func (handler *MedicineHandler) RequestMedicine(ctx *gin.Context) {
	handler.applyTransition(ctx, workflow.ActionRequest, "Medicine requested successfully")
}

// ApproveRequest lets the owning donor approve the pending request. The
// requester becomes the designated receiver.
func (handler *MedicineHandler) ApproveRequest(ctx *gin.Context) {
	handler.applyTransition(ctx, workflow.ActionApprove, "Request approved successfully")
}

// RejectRequest lets the owning donor reject the pending request, returning
// the listing to the open pool.
func (handler *MedicineHandler) RejectRequest(ctx *gin.Context) {
	handler.applyTransition(ctx, workflow.ActionReject, "Request rejected")
}

// ConfirmReceipt lets the designated receiver confirm the handover, closing
// the listing.
func (handler *MedicineHandler) ConfirmReceipt(ctx *gin.Context) {
	handler.applyTransition(ctx, workflow.ActionReceive, "Receipt confirmed, thank you!")
}

// applyTransition runs one lifecycle action: resolve the listing, check the
// caller is the right party, then flip the status with a conditional update
// so a concurrent writer cannot slip in between check and write.
func (handler *MedicineHandler) applyTransition(ctx *gin.Context, action workflow.Action, successMessage string) {
	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	medicineId := ctx.Param(utils.MedicineIdKey)

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	var donorId string
	var receiverId, requestedBy *string
	var status string

	queryString := "SELECT donor_id, receiver_id, requested_by, status FROM medicare_schema.medicines WHERE medicine_id = $1"
	err := tx.QueryRow(ctx, queryString, medicineId).Scan(&donorId, &receiverId, &requestedBy, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.MedicineNotFound, http.StatusNotFound, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	switch action {
	case workflow.ActionApprove, workflow.ActionReject:
		if donorId != authCtx.ProfileID {
			utils.WriteAndLogError(ctx, schemas.NotListingOwner, http.StatusForbidden, errors.New("caller does not own listing"))
			return
		}
	case workflow.ActionReceive:
		if receiverId == nil || *receiverId != authCtx.ProfileID {
			utils.WriteAndLogError(ctx, schemas.NotDesignatedReceiver, http.StatusForbidden, errors.New("caller is not the designated receiver"))
			return
		}
	}

	if !workflow.CanApply(action, workflow.Status(status)) {
		utils.WriteAndLogError(ctx, schemas.InvalidTransition, http.StatusBadRequest, errors.New("action not allowed in status "+status))
		return
	}

	var commandTag pgconn.CommandTag
	switch action {
	case workflow.ActionRequest:
		queryString = "UPDATE medicare_schema.medicines SET status = 'requested', requested_by = $1 WHERE medicine_id = $2 AND status = 'available'"
		commandTag, err = tx.Exec(ctx, queryString, authCtx.ProfileID, medicineId)
	case workflow.ActionApprove:
		queryString = "UPDATE medicare_schema.medicines SET status = 'approved', receiver_id = requested_by WHERE medicine_id = $1 AND status = 'requested'"
		commandTag, err = tx.Exec(ctx, queryString, medicineId)
	case workflow.ActionReject:
		queryString = "UPDATE medicare_schema.medicines SET status = 'available', requested_by = NULL WHERE medicine_id = $1 AND status = 'requested'"
		commandTag, err = tx.Exec(ctx, queryString, medicineId)
	case workflow.ActionReceive:
		queryString = "UPDATE medicare_schema.medicines SET status = 'received' WHERE medicine_id = $1 AND status = 'approved' AND receiver_id = $2"
		commandTag, err = tx.Exec(ctx, queryString, medicineId, authCtx.ProfileID)
	}

	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if commandTag.RowsAffected() == 0 {
		// A concurrent transition got there first.
		utils.WriteAndLogError(ctx, schemas.InvalidTransition, http.StatusBadRequest, errors.New("listing changed concurrently"))
		return
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.MessageDTO{
		Success: true,
		Message: successMessage,
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

// DeleteMedicine removes a listing. Allowed for the owning donor in any
// lifecycle state, and for admins.
func (handler *MedicineHandler) DeleteMedicine(ctx *gin.Context) {
	authCtx, ok := utils.GetAuthContext(ctx)
	if !ok {
		utils.WriteAndLogError(ctx, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
		return
	}

	medicineId := ctx.Param(utils.MedicineIdKey)

	tx := utils.BeginTransaction(ctx, handler.DatabaseManager.GetPool())
	if tx == nil {
		return
	}
	defer utils.RollbackTransaction(ctx, tx)

	var donorId string
	queryString := "SELECT donor_id FROM medicare_schema.medicines WHERE medicine_id = $1"
	err := tx.QueryRow(ctx, queryString, medicineId).Scan(&donorId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteAndLogError(ctx, schemas.MedicineNotFound, http.StatusNotFound, err)
		} else {
			utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		}
		return
	}

	if authCtx.Role != schemas.RoleAdmin && donorId != authCtx.ProfileID {
		utils.WriteAndLogError(ctx, schemas.NotListingOwner, http.StatusForbidden, errors.New("caller does not own listing"))
		return
	}

	queryString = "DELETE FROM medicare_schema.medicines WHERE medicine_id = $1"
	if _, err = tx.Exec(ctx, queryString, medicineId); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if err = utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.MessageDTO{
		Success: true,
		Message: "Medicine deleted successfully",
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}

func parseExpiry(value string) (time.Time, error) {
	if expiry, err := time.Parse(time.RFC3339, value); err == nil {
		return expiry, nil
	}
	return time.Parse("2006-01-02", value)
}

func scanListings(rows pgx.Rows) ([]schemas.MedicineDTO, error) {
	defer rows.Close()

	medicines := make([]schemas.MedicineDTO, 0)
	for rows.Next() {
		var medicine schemas.MedicineDTO
		var expiry, createdAt time.Time
		donor := &schemas.PartyDTO{}
		var receiverProfile, receiverName, receiverEmail *string
		var requesterProfile, requesterName, requesterEmail *string

		if err := rows.Scan(&medicine.ID, &medicine.Name, &expiry, &medicine.Quantity, &medicine.Status, &createdAt,
			&donor.ProfileID, &donor.Name, &donor.Email,
			&receiverProfile, &receiverName, &receiverEmail,
			&requesterProfile, &requesterName, &requesterEmail); err != nil {
			return nil, err
		}

		medicine.Expiry = expiry.Format(time.RFC3339)
		medicine.CreatedAt = createdAt.Format(time.RFC3339)
		medicine.Donor = donor
		medicine.Receiver = buildParty(receiverProfile, receiverName, receiverEmail)
		medicine.RequestedBy = buildParty(requesterProfile, requesterName, requesterEmail)

		medicines = append(medicines, medicine)
	}

	return medicines, rows.Err()
}

func buildParty(profileId, name, email *string) *schemas.PartyDTO {
	if profileId == nil {
		return nil
	}
	party := &schemas.PartyDTO{ProfileID: *profileId}
	if name != nil {
		party.Name = *name
	}
	if email != nil {
		party.Email = *email
	}
	return party
}
