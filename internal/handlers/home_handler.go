package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

type HomeHdl interface {
	GetStats(ctx *gin.Context)
}

type HomeHandler struct {
	DatabaseManager managers.DatabaseMgr
}

func NewHomeHandler(databaseManager managers.DatabaseMgr) HomeHdl {
	return &HomeHandler{
		DatabaseManager: databaseManager,
	}
}

// GetStats returns the public landing-page counters.
func (handler *HomeHandler) GetStats(ctx *gin.Context) {
	pool := handler.DatabaseManager.GetPool()

	var stats schemas.HomeStatsDTO
	queryString := "SELECT " +
		"(SELECT COUNT(*) FROM medicare_schema.donor_profiles), " +
		"(SELECT COUNT(*) FROM medicare_schema.receiver_profiles), " +
		"(SELECT COUNT(*) FROM medicare_schema.reviews WHERE approved)"
	if err := pool.QueryRow(ctx, queryString).Scan(&stats.TotalDonors, &stats.TotalReceivers, &stats.TotalApprovedReviews); err != nil {
		utils.WriteAndLogError(ctx, schemas.DatabaseError, http.StatusInternalServerError, err)
		return
	}

	response := &schemas.HomeStatsResponseDTO{
		Success: true,
		Stats:   stats,
	}
	utils.WriteAndLogResponse(ctx, response, http.StatusOK)
}
