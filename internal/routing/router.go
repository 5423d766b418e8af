// Package routing assembles the Gin engine: common middleware, public
// routes and the role-guarded route groups.
package routing

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"medicare-server/internal/handlers"
	"medicare-server/internal/managers"
	"medicare-server/internal/middleware"
	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

func InitRouter(databaseMgr managers.DatabaseMgr, mailMgr managers.MailMgr, jwtMgr managers.JWTMgr, storageMgr managers.StorageMgr) *gin.Engine {
	router := gin.New()
	setupCommonMiddleware(router)
	setupRoutes(router, databaseMgr, mailMgr, jwtMgr, storageMgr)

	return router
}

func setupCommonMiddleware(router *gin.Engine) {
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.InjectTrace())

	allowOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowOrigins = append(allowOrigins, frontendURL)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  []string{"GET", "PATCH", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Trace-Id"},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(middleware.SanitizePath())
	router.Use(middleware.LogRequest())
}

func setupRoutes(router *gin.Engine, databaseMgr managers.DatabaseMgr, mailMgr managers.MailMgr, jwtMgr managers.JWTMgr, storageMgr managers.StorageMgr) {
	// Version route
	router.GET("/", func(c *gin.Context) {
		apiVersion := os.Getenv("API_VERSION")
		if apiVersion == "" {
			apiVersion = "main:latest"
		}
		metadata := &schemas.MetadataDTO{
			ApiVersion: apiVersion,
			ApiName:    "MediCare",
		}
		utils.WriteAndLogResponse(c, metadata, http.StatusOK)
	})

	// Health route
	router.GET("/health", func(c *gin.Context) {
		if err := databaseMgr.GetPool().Ping(c); err != nil {
			c.String(http.StatusInternalServerError, "Database not responding")
			return
		}
		c.Status(http.StatusOK)
	})

	authenticate := middleware.Authenticate(jwtMgr, databaseMgr)

	apiRouter := router.Group("/api")
	{
		authRouter := apiRouter.Group("/auth")
		authHdl := handlers.NewAuthHandler(databaseMgr, jwtMgr, mailMgr)
		authRoutes(authRouter, authHdl)

		medicineRouter := apiRouter.Group("/medicine")
		medicineHdl := handlers.NewMedicineHandler(databaseMgr)
		medicineRoutes(medicineRouter, medicineHdl, authenticate)

		profileRouter := apiRouter.Group("/profile")
		profileRouter.Use(authenticate)
		profileHdl := handlers.NewProfileHandler(databaseMgr, storageMgr)
		profileRoutes(profileRouter, profileHdl)

		reviewRouter := apiRouter.Group("/review")
		reviewHdl := handlers.NewReviewHandler(databaseMgr)
		reviewRoutes(reviewRouter, reviewHdl, authenticate)

		adminRouter := apiRouter.Group("/admin")
		adminRouter.Use(authenticate, middleware.RequireRoles(schemas.RoleAdmin))
		adminHdl := handlers.NewAdminHandler(databaseMgr)
		adminRoutes(adminRouter, adminHdl)

		homeHdl := handlers.NewHomeHandler(databaseMgr)
		apiRouter.GET("/home/stats", homeHdl.GetStats)
	}
}

func authRoutes(authRouter *gin.RouterGroup, authHdl handlers.AuthHdl) {
	authRouter.POST("/register", middleware.ValidateAndSanitizeStruct[schemas.RegistrationRequest](), authHdl.Register)
	authRouter.POST("/verify-otp", middleware.ValidateAndSanitizeStruct[schemas.VerifyOTPRequest](), authHdl.VerifyOTP)
	authRouter.POST("/login", middleware.ValidateAndSanitizeStruct[schemas.LoginRequest](), authHdl.Login)
	authRouter.POST("/admin-login", middleware.ValidateAndSanitizeStruct[schemas.AdminLoginRequest](), authHdl.AdminLogin)
	authRouter.POST("/forgot-password", middleware.ValidateAndSanitizeStruct[schemas.ForgotPasswordRequest](), authHdl.ForgotPassword)
	authRouter.POST("/reset-password/:"+utils.ResetTokenKey, middleware.ValidateAndSanitizeStruct[schemas.ResetPasswordRequest](), authHdl.ResetPassword)
}

func medicineRoutes(medicineRouter *gin.RouterGroup, medicineHdl handlers.MedicineHdl, authenticate gin.HandlerFunc) {
	// Browsing the listings is public, everything else is role-bound.
	medicineRouter.GET("", medicineHdl.GetMedicines)

	medicineRouter.POST("", authenticate, middleware.RequireRoles(schemas.RoleDonor),
		middleware.ValidateAndSanitizeStruct[schemas.CreateMedicineRequest](), medicineHdl.CreateMedicine)
	medicineRouter.GET("/my-medicines", authenticate, middleware.RequireRoles(schemas.RoleDonor), medicineHdl.GetMyMedicines)
	medicineRouter.POST("/request/:"+utils.MedicineIdKey, authenticate, middleware.RequireRoles(schemas.RoleReceiver), medicineHdl.RequestMedicine)
	medicineRouter.POST("/:"+utils.MedicineIdKey+"/approve", authenticate, middleware.RequireRoles(schemas.RoleDonor), medicineHdl.ApproveRequest)
	medicineRouter.POST("/:"+utils.MedicineIdKey+"/reject", authenticate, middleware.RequireRoles(schemas.RoleDonor), medicineHdl.RejectRequest)
	medicineRouter.POST("/:"+utils.MedicineIdKey+"/receive", authenticate, middleware.RequireRoles(schemas.RoleReceiver), medicineHdl.ConfirmReceipt)
	medicineRouter.DELETE("/:"+utils.MedicineIdKey, authenticate, middleware.RequireRoles(schemas.RoleDonor, schemas.RoleAdmin), medicineHdl.DeleteMedicine)
}

func profileRoutes(profileRouter *gin.RouterGroup, profileHdl handlers.ProfileHdl) {
	profileRouter.GET("", profileHdl.GetProfile)
	profileRouter.PUT("", middleware.ValidateAndSanitizeStruct[schemas.UpdateProfileRequest](), profileHdl.UpdateProfile)
	profileRouter.POST("/upload-photo", profileHdl.UploadPhoto)
}

func reviewRoutes(reviewRouter *gin.RouterGroup, reviewHdl handlers.ReviewHdl, authenticate gin.HandlerFunc) {
	reviewRouter.GET("", reviewHdl.GetPublicReviews)
	reviewRouter.POST("", authenticate, middleware.RequireRoles(schemas.RoleReceiver),
		middleware.ValidateAndSanitizeStruct[schemas.CreateReviewRequest](), reviewHdl.CreateReview)
	reviewRouter.GET("/:"+utils.DonorIdKey, authenticate, reviewHdl.GetDonorReviews)
}

func adminRoutes(adminRouter *gin.RouterGroup, adminHdl handlers.AdminHdl) {
	adminRouter.GET("/users", adminHdl.GetUsers)
	adminRouter.POST("/users", middleware.ValidateAndSanitizeStruct[schemas.AdminCreateUserRequest](), adminHdl.CreateUser)
	adminRouter.PUT("/users/:"+utils.UserIdKey, middleware.ValidateAndSanitizeStruct[schemas.AdminUpdateUserRequest](), adminHdl.UpdateUser)
	adminRouter.DELETE("/users/:"+utils.UserIdKey, adminHdl.DeleteUser)
	adminRouter.GET("/donors", adminHdl.GetDonors)
	adminRouter.GET("/receivers", adminHdl.GetReceivers)
	adminRouter.GET("/medicines", adminHdl.GetMedicines)
	adminRouter.GET("/reviews", adminHdl.GetReviews)
	adminRouter.GET("/stats", adminHdl.GetStats)
}
