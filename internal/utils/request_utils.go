package utils

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medicare-server/internal/schemas"
)

// WriteAndLogResponse encodes the response object to JSON and writes it with
// the provided status code.
func WriteAndLogResponse(ctx *gin.Context, response interface{}, statusCode int) {
	LogMessageWithFields(ctx, "debug", "Returning response")
	ctx.JSON(statusCode, response)
}

// WriteAndLogError logs the causing error and writes the custom error with
// the specified status code.
func WriteAndLogError(ctx *gin.Context, customErr *schemas.CustomError, statusCode int, err error) {
	LogMessageWithFields(ctx, "error", "Error occurred: "+err.Error())
	LogMessageWithFields(ctx, "error", "Returning "+customErr.Code+" / "+customErr.Message)
	ctx.JSON(statusCode, customErr)
}

// GetAuthContext fetches the AuthContext resolved by the authentication
// middleware. The second return is false on unauthenticated requests, which
// only happens when a route is misconfigured.
func GetAuthContext(ctx *gin.Context) (*schemas.AuthContext, bool) {
	value, exists := ctx.Get(AuthContextKey.String())
	if !exists {
		return nil, false
	}
	authCtx, ok := value.(*schemas.AuthContext)
	return authCtx, ok
}

// GetSanitizedPayload fetches the payload stored by the validation middleware.
func GetSanitizedPayload[T any](ctx *gin.Context) (T, bool) {
	var zero T
	value, exists := ctx.Get(SanitizedPayloadKey.String())
	if !exists {
		return zero, false
	}
	payload, ok := value.(T)
	if !ok {
		return zero, false
	}
	return payload, true
}

// ParsePaginationParams reads offset/limit query parameters with the usual
// defaults.
func ParsePaginationParams(ctx *gin.Context) (int, int, error) {
	offsetString := ctx.DefaultQuery(OffsetParamKey, "0")
	offset, err := strconv.Atoi(offsetString)
	if err != nil || offset < 0 {
		return 0, 0, errors.New("offset invalid")
	}

	limitString := ctx.DefaultQuery(LimitParamKey, "10")
	limit, err := strconv.Atoi(limitString)
	if err != nil || limit <= 0 {
		return 0, 0, errors.New("limit invalid")
	}

	return offset, limit, nil
}

// SendPaginatedResponse writes the requested window of records together with
// the pagination envelope.
func SendPaginatedResponse[T any](ctx *gin.Context, records []T, offset, limit int) {
	totalRecords := len(records)
	if offset > totalRecords {
		offset = totalRecords
	}

	end := offset + limit
	if end > totalRecords {
		end = totalRecords
	}

	response := schemas.PaginatedResponse{
		Records: records[offset:end],
		Pagination: schemas.Pagination{
			Offset:  offset,
			Limit:   limit,
			Records: totalRecords,
		},
	}

	WriteAndLogResponse(ctx, response, http.StatusOK)
}
