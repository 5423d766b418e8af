package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

type ReviewHdl interface {
	CreateReview(ctx *gin.Context)
	GetDonorReviews(ctx *gin.Context)
	GetPublicReviews(ctx *gin.Context)
}

type ReviewHandler struct {
	DatabaseManager managers.DatabaseMgr
}

func NewReviewHandler(databaseManager managers.DatabaseMgr) ReviewHdl {
	return &ReviewHandler{
		DatabaseManager: databaseManager,
	}
}

const reviewQuery = "SELECT r.review_id, r.donor_id, r.rating, r.comment, r.approved, r.created_at, u.user_id, u.name, u.email " +
	"FROM medicare_schema.reviews r " +
	"JOIN medicare_schema.users u ON r.author_id = u.user_id"

// CreateReview stores receiver feedback about a donor. Reviews start out
// unapproved and stay out of the public feed until an admin releases them.
func (handler *ReviewHandler) CreateReview(ctx *gin.Context) {
	createRequest, ok := utils.GetSanitizedPayload[*schemas.CreateReviewRequest](ctx)
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

	var donorExists bool
	queryString := "SELECT EXISTS(SELECT 1 FROM medicare_schema.donor_profiles WHERE profile_id = $1)"
	if err := tx.QueryRow(ctx, queryString, createRequest.DonorID).Scan(&donorExists); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}
	if !donorExists {
		utils.WriteAndLogError(ctx, schemas.DonorNotFound, http.StatusNotFound, errors.New("donor profile unknown"))
		return
	}

	reviewId := uuid.New().String()
	createdAt := time.Now()

	queryString = "INSERT INTO medicare_schema.reviews (review_id, author_id, donor_id, rating, comment, approved, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)"
	if _, err := tx.Exec(ctx, queryString, reviewId, authCtx.UserID, createRequest.DonorID, createRequest.Rating,
		createRequest.Comment, false, createdAt); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	if err := utils.CommitTransaction(ctx, tx); err != nil {
		return
	}

	response := &schemas.ReviewDTO{
		ID:      reviewId,
		DonorID: createRequest.DonorID,
		Author: &schemas.PartyDTO{
			ProfileID: authCtx.UserID,
			Name:      authCtx.Name,
			Email:     authCtx.Email,
		},
		Rating:    createRequest.Rating,
		Comment:   createRequest.Comment,
		Approved:  false,
		CreatedAt: createdAt.Format(time.RFC3339),
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusCreated)
}

// GetDonorReviews returns the approved reviews of one donor.
func (handler *ReviewHandler) GetDonorReviews(ctx *gin.Context) {
	donorId := ctx.Param(utils.DonorIdKey)

	offset, limit, err := utils.ParsePaginationParams(ctx)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.BadRequest, http.StatusBadRequest, err)
		return
	}

	pool := handler.DatabaseManager.GetPool()
	rows, err := pool.Query(ctx, reviewQuery+" WHERE r.donor_id = $1 AND r.approved ORDER BY r.created_at DESC", donorId)
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

// GetPublicReviews returns the ten newest approved reviews for the landing
// page feed.
func (handler *ReviewHandler) GetPublicReviews(ctx *gin.Context) {
	pool := handler.DatabaseManager.GetPool()
	rows, err := pool.Query(ctx, reviewQuery+" WHERE r.approved ORDER BY r.created_at DESC LIMIT 10")
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	reviews, err := scanReviews(rows)
	if err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	utils.WriteAndLogResponse(ctx, reviews, http.StatusOK)
}

func scanReviews(rows pgx.Rows) ([]schemas.ReviewDTO, error) {
	defer rows.Close()

	reviews := make([]schemas.ReviewDTO, 0)
	for rows.Next() {
		var review schemas.ReviewDTO
		var createdAt time.Time
		author := &schemas.PartyDTO{}

		if err := rows.Scan(&review.ID, &review.DonorID, &review.Rating, &review.Comment, &review.Approved,
			&createdAt, &author.ProfileID, &author.Name, &author.Email); err != nil {
			return nil, err
		}

		review.CreatedAt = createdAt.Format(time.RFC3339)
		review.Author = author
		reviews = append(reviews, review)
	}

	return reviews, rows.Err()
}
