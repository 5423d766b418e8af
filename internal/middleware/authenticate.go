package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"

	"medicare-server/internal/managers"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

// Authenticate validates the bearer token and resolves the account behind it
// into a schemas.AuthContext on the request context. Regular accounts live in
// the users table; admin tokens fall back to the standalone admins table.
func Authenticate(jwtMgr managers.JWTMgr, databaseMgr managers.DatabaseMgr) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.WriteAndLogError(c, schemas.Unauthorized, http.StatusUnauthorized, errors.New("missing bearer token"))
			c.Abort()
			return
		}

		claims, err := jwtMgr.ValidateJWT(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.WriteAndLogError(c, schemas.Unauthorized, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		userId, err := claims.GetSubject()
		if err != nil || userId == "" {
			utils.WriteAndLogError(c, schemas.Unauthorized, http.StatusUnauthorized, errors.New("token has no subject"))
			c.Abort()
			return
		}

		authCtx, err := resolveAccount(c, databaseMgr, userId, tokenRole(claims))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				utils.WriteAndLogError(c, schemas.Unauthorized, http.StatusUnauthorized, err)
			} else {
				utils.WriteAndLogError(c, schemas.DatabaseError, http.StatusInternalServerError, err)
			}
			c.Abort()
			return
		}

		c.Set(utils.AuthContextKey.String(), authCtx)
		c.Next()
	}
}

// RequireRoles rejects the request with a 403 unless the authenticated
// account holds one of the given roles. Must run after Authenticate.
func RequireRoles(roles ...schemas.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, ok := utils.GetAuthContext(c)
		if !ok {
			utils.WriteAndLogError(c, schemas.Unauthorized, http.StatusUnauthorized, errors.New("no auth context"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if authCtx.Role == role {
				c.Next()
				return
			}
		}

		utils.WriteAndLogError(c, schemas.Forbidden, http.StatusForbidden, errors.New("insufficient role"))
		c.Abort()
	}
}

func tokenRole(claims jwt.Claims) schemas.Role {
	mapClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := mapClaims["role"].(string)
	return schemas.Role(role)
}

func resolveAccount(c *gin.Context, databaseMgr managers.DatabaseMgr, userId string, role schemas.Role) (*schemas.AuthContext, error) {
	pool := databaseMgr.GetPool()

	var name, email string
	var dbRole schemas.Role
	var donorProfileId, receiverProfileId *string

	queryString := "SELECT name, email, role, donor_profile_id, receiver_profile_id FROM medicare_schema.users WHERE user_id = $1 AND verified_at IS NOT NULL"
	err := pool.QueryRow(c, queryString, userId).Scan(&name, &email, &dbRole, &donorProfileId, &receiverProfileId)
	if err == nil {
		authCtx := &schemas.AuthContext{
			UserID: userId,
			Name:   name,
			Email:  email,
			Role:   dbRole,
		}
		switch dbRole {
		case schemas.RoleDonor:
			if donorProfileId != nil {
				authCtx.ProfileID = *donorProfileId
			}
		case schemas.RoleReceiver:
			if receiverProfileId != nil {
				authCtx.ProfileID = *receiverProfileId
			}
		}
		return authCtx, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) || role != schemas.RoleAdmin {
		return nil, err
	}

	// Standalone admin accounts are not part of the users table.
	queryString = "SELECT name, email FROM medicare_schema.admins WHERE admin_id = $1"
	if err := pool.QueryRow(c, queryString, userId).Scan(&name, &email); err != nil {
		return nil, err
	}

	return &schemas.AuthContext{
		UserID: userId,
		Name:   name,
		Email:  email,
		Role:   schemas.RoleAdmin,
	}, nil
}
