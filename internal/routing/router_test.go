package routing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"medicare-server/internal/managers"
	"medicare-server/internal/managers/mocks"
	"medicare-server/internal/schemas"
)

const pgTimeLayout = "2006-01-02 15:04:05.999999999Z07:00"

func setupMocks(t *testing.T) (*mocks.MockDatabaseManager, managers.JWTMgr, *mocks.MockMailManager, *mocks.MockStorageManager) {
	poolMock, err := pgxmock.NewPool()
	if err != nil {
		log.Errorf("Error creating mock database pool: %v", err)
	}

	databaseMgrMock := &mocks.MockDatabaseManager{}
	databaseMgrMock.On("GetPool").Return(poolMock)

	t.Setenv("ENVIRONMENT", "test")
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Errorf("Error generating key pair: %v", err)
	}
	jwtMgr := managers.NewJWTManagerFromKeyPair(privateKey, publicKey)

	mailMgrMock := &mocks.MockMailManager{}
	mailMgrMock.On("SendOTPMail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mailMgrMock.On("SendConfirmationMail", mock.Anything, mock.Anything).Return(nil)
	mailMgrMock.On("SendPasswordResetMail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	storageMgrMock := &mocks.MockStorageManager{}

	return databaseMgrMock, jwtMgr, mailMgrMock, storageMgrMock
}

func newTestServer(t *testing.T) (*httptest.Server, pgxmock.PgxPoolIface, managers.JWTMgr) {
	databaseMgrMock, jwtMgr, mailMgrMock, storageMgrMock := setupMocks(t)

	router := InitRouter(databaseMgrMock, mailMgrMock, jwtMgr, storageMgrMock)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	poolMock := databaseMgrMock.GetPool().(pgxmock.PgxPoolIface)
	return server, poolMock, jwtMgr
}

func bearerToken(t *testing.T, jwtMgr managers.JWTMgr, userId string, role schemas.Role) string {
	token, err := jwtMgr.GenerateJWT(jwtMgr.GenerateClaims(userId, role))
	if err != nil {
		t.Fatalf("error generating token: %v", err)
	}
	return "Bearer " + token
}

// expectAuthenticate sets up the account lookup the authentication middleware
// performs on every protected route.
func expectAuthenticate(poolMock pgxmock.PgxPoolIface, userId, name, email string, role schemas.Role, profileId string) {
	var donorProfile, receiverProfile *string
	switch role {
	case schemas.RoleDonor:
		donorProfile = &profileId
	case schemas.RoleReceiver:
		receiverProfile = &profileId
	}

	poolMock.ExpectQuery("SELECT name, email, role, donor_profile_id, receiver_profile_id").
		WithArgs(userId).
		WillReturnRows(pgxmock.NewRows([]string{"name", "email", "role", "donor_profile_id", "receiver_profile_id"}).
			AddRow(name, email, role, donorProfile, receiverProfile))
}

func strPtr(s string) *string {
	return &s
}

func pgTime(t time.Time) string {
	return t.UTC().Format(pgTimeLayout)
}

func TestRegistration(t *testing.T) {
	registrationBody := map[string]interface{}{
		"name":     "Maya Donor",
		"email":    "maya@example.com",
		"phone":    "5551234567",
		"password": "test.Password123",
		"role":     "donor",
	}

	t.Run("ValidRegistration", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, verified_at FROM medicare_schema.users").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "verified_at"}))
		poolMock.ExpectExec("INSERT INTO medicare_schema.users").
			WithArgs(pgxmock.AnyArg(), "Maya Donor", "maya@example.com", "5551234567", pgxmock.AnyArg(),
				"donor", "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/register").WithJSON(registrationBody).Expect().Status(http.StatusCreated)
		response.JSON().Object().HasValue("success", true).HasValue("email", "maya@example.com")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("AlreadyVerified", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, verified_at FROM medicare_schema.users").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "verified_at"}).
				AddRow(uuid.New().String(), pgTime(time.Now())))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/register").WithJSON(registrationBody).Expect().Status(http.StatusConflict)
		response.JSON().Object().HasValue("code", "ERR-001")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("RetryOverwritesUnverified", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)
		existingId := uuid.New().String()

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, verified_at FROM medicare_schema.users").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "verified_at"}).AddRow(existingId, nil))
		poolMock.ExpectExec("UPDATE medicare_schema.users SET name").
			WithArgs("Maya Donor", "5551234567", pgxmock.AnyArg(), "donor", pgxmock.AnyArg(), pgxmock.AnyArg(), existingId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/register").WithJSON(registrationBody).Expect().Status(http.StatusCreated)
		response.JSON().Object().HasValue("userId", existingId)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		invalid := map[string]interface{}{
			"name":     "Maya Donor",
			"email":    "maya@example.com",
			"phone":    "5551234567",
			"password": "weak",
			"role":     "donor",
		}

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/register").WithJSON(invalid).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-000")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestVerifyOTP(t *testing.T) {
	userId := uuid.New().String()
	verifyBody := map[string]interface{}{
		"email": "maya@example.com",
		"otp":   "123456",
	}
	selectColumns := []string{"user_id", "name", "role", "otp_code", "otp_expires_at", "verified_at"}

	t.Run("Success", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name, role, otp_code").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(selectColumns).
				AddRow(userId, "Maya Donor", schemas.RoleDonor, strPtr("123456"), pgTime(time.Now().Add(10*time.Minute)), nil))
		poolMock.ExpectExec("INSERT INTO medicare_schema.donor_profiles").
			WithArgs(pgxmock.AnyArg(), userId, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		poolMock.ExpectExec("UPDATE medicare_schema.users SET verified_at").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), userId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/verify-otp").WithJSON(verifyBody).Expect().Status(http.StatusOK)
		body := response.JSON().Object()
		body.HasValue("success", true)
		body.Value("token").String().NotEmpty()
		body.Value("user").Object().HasValue("isVerified", true).HasValue("role", "donor")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("AlreadyVerified", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		// The account was verified by an earlier submission; the same code
		// must not work a second time.
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name, role, otp_code").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(selectColumns).
				AddRow(userId, "Maya Donor", schemas.RoleDonor, (*string)(nil), nil, pgTime(time.Now())))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/verify-otp").WithJSON(verifyBody).Expect().Status(http.StatusConflict)
		response.JSON().Object().HasValue("code", "ERR-001")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ExpiredOTP", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name, role, otp_code").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(selectColumns).
				AddRow(userId, "Maya Donor", schemas.RoleDonor, strPtr("123456"), pgTime(time.Now().Add(-time.Minute)), nil))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/verify-otp").WithJSON(verifyBody).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-005")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("WrongOTP", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name, role, otp_code").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(selectColumns).
				AddRow(userId, "Maya Donor", schemas.RoleDonor, strPtr("654321"), pgTime(time.Now().Add(10*time.Minute)), nil))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/verify-otp").WithJSON(verifyBody).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-006")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name, role, otp_code").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(selectColumns))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/verify-otp").WithJSON(verifyBody).Expect().Status(http.StatusNotFound)
		response.JSON().Object().HasValue("code", "ERR-004")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestLogin(t *testing.T) {
	userId := uuid.New().String()
	password := "test.Password123"
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	loginColumns := []string{"user_id", "name", "password", "role", "verified_at"}
	loginBody := map[string]interface{}{
		"email":    "maya@example.com",
		"password": password,
	}

	t.Run("ValidLogin", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectQuery("SELECT user_id, name, password, role, verified_at").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(loginColumns).
				AddRow(userId, "Maya Donor", string(hash), schemas.RoleDonor, pgTime(time.Now())))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/login").WithJSON(loginBody).Expect().Status(http.StatusOK)
		body := response.JSON().Object()
		body.Value("token").String().NotEmpty()
		body.Value("user").Object().HasValue("_id", userId)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("LegacyPlaintextPassword", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectQuery("SELECT user_id, name, password, role, verified_at").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(loginColumns).
				AddRow(userId, "Maya Donor", password, schemas.RoleDonor, pgTime(time.Now())))

		expect := httpexpect.Default(t, server.URL)
		expect.POST("/api/auth/login").WithJSON(loginBody).Expect().Status(http.StatusOK)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		otherHash, _ := bcrypt.GenerateFromPassword([]byte("other.Password123"), bcrypt.DefaultCost)
		poolMock.ExpectQuery("SELECT user_id, name, password, role, verified_at").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(loginColumns).
				AddRow(userId, "Maya Donor", string(otherHash), schemas.RoleDonor, pgTime(time.Now())))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/login").WithJSON(loginBody).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-007")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnverifiedAccount", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectQuery("SELECT user_id, name, password, role, verified_at").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(loginColumns).
				AddRow(userId, "Maya Donor", string(hash), schemas.RoleDonor, nil))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/login").WithJSON(loginBody).Expect().Status(http.StatusUnauthorized)
		response.JSON().Object().HasValue("code", "ERR-008")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectQuery("SELECT user_id, name, password, role, verified_at").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows(loginColumns))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/login").WithJSON(loginBody).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-007")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestAdminLogin(t *testing.T) {
	adminId := uuid.New().String()
	password := "admin.Password123"
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	loginBody := map[string]interface{}{
		"email":    "admin@example.com",
		"password": password,
	}

	t.Run("FallbackToAdminStore", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectQuery("SELECT user_id, name, password FROM medicare_schema.users").
			WithArgs("admin@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "name", "password"}))
		poolMock.ExpectQuery("SELECT admin_id, name, password FROM medicare_schema.admins").
			WithArgs("admin@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"admin_id", "name", "password"}).
				AddRow(adminId, "Root Admin", string(hash)))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/admin-login").WithJSON(loginBody).Expect().Status(http.StatusOK)
		response.JSON().Object().Value("user").Object().HasValue("role", "admin")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnknownAdmin", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectQuery("SELECT user_id, name, password FROM medicare_schema.users").
			WithArgs("admin@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "name", "password"}))
		poolMock.ExpectQuery("SELECT admin_id, name, password FROM medicare_schema.admins").
			WithArgs("admin@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"admin_id", "name", "password"}))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/admin-login").WithJSON(loginBody).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-007")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestForgotPassword(t *testing.T) {
	body := map[string]interface{}{"email": "maya@example.com"}

	t.Run("KnownEmail", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)
		userId := uuid.New().String()

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name FROM medicare_schema.users").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "name"}).AddRow(userId, "Maya Donor"))
		poolMock.ExpectExec("UPDATE medicare_schema.users SET reset_token_hash").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), userId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/forgot-password").WithJSON(body).Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("success", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnknownEmailSameResponse", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT user_id, name FROM medicare_schema.users").
			WithArgs("maya@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "name"}))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/forgot-password").WithJSON(body).Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("success", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestResetPassword(t *testing.T) {
	rawToken := "0123456789abcdef0123456789abcdef01234567"
	tokenHash := sha256.Sum256([]byte(rawToken))
	body := map[string]interface{}{"password": "new.Password123"}

	t.Run("Success", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectExec("UPDATE medicare_schema.users SET password").
			WithArgs(pgxmock.AnyArg(), hex.EncodeToString(tokenHash[:])).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/reset-password/" + rawToken).WithJSON(body).Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("success", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("TokenAlreadySpent", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		poolMock.ExpectExec("UPDATE medicare_schema.users SET password").
			WithArgs(pgxmock.AnyArg(), hex.EncodeToString(tokenHash[:])).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/auth/reset-password/" + rawToken).WithJSON(body).Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-015")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestMedicineLifecycle(t *testing.T) {
	donorUserId := uuid.New().String()
	donorProfileId := uuid.New().String()
	receiverUserId := uuid.New().String()
	receiverProfileId := uuid.New().String()
	medicineId := uuid.New().String()
	statusColumns := []string{"donor_id", "receiver_id", "requested_by", "status"}

	t.Run("CreateListing", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)
		poolMock.ExpectExec("INSERT INTO medicare_schema.medicines").
			WithArgs(pgxmock.AnyArg(), "Paracetamol 500mg", pgxmock.AnyArg(), 3, "available", donorProfileId, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			WithJSON(map[string]interface{}{
				"name":     "Paracetamol 500mg",
				"expiry":   "2027-06-30",
				"quantity": 3,
			}).
			Expect().Status(http.StatusCreated)
		response.JSON().Object().Value("medicine").Object().HasValue("status", "available")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("GarbageExpiryDate", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			WithJSON(map[string]interface{}{
				"name":     "Paracetamol 500mg",
				"expiry":   "soon-ish",
				"quantity": 3,
			}).
			Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-023")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("RequestAvailableListing", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, receiverUserId, "Ravi Receiver", "ravi@example.com", schemas.RoleReceiver, receiverProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns).AddRow(donorProfileId, nil, nil, "available"))
		poolMock.ExpectExec("UPDATE medicare_schema.medicines SET status = 'requested'").
			WithArgs(receiverProfileId, medicineId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine/request/"+medicineId).
			WithHeader("Authorization", bearerToken(t, jwtMgr, receiverUserId, schemas.RoleReceiver)).
			Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("success", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("RequestForbiddenForDonor", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine/request/"+medicineId).
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			Expect().Status(http.StatusForbidden)
		response.JSON().Object().HasValue("code", "ERR-010")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ApproveRequest", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns).AddRow(donorProfileId, nil, strPtr(receiverProfileId), "requested"))
		poolMock.ExpectExec("UPDATE medicare_schema.medicines SET status = 'approved'").
			WithArgs(medicineId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		expect.POST("/api/medicine/"+medicineId+"/approve").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			Expect().Status(http.StatusOK)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ApproveByWrongDonor", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)
		intruderUserId := uuid.New().String()
		intruderProfileId := uuid.New().String()

		expectAuthenticate(poolMock, intruderUserId, "Ivan Intruder", "ivan@example.com", schemas.RoleDonor, intruderProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns).AddRow(donorProfileId, nil, strPtr(receiverProfileId), "requested"))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine/"+medicineId+"/approve").
			WithHeader("Authorization", bearerToken(t, jwtMgr, intruderUserId, schemas.RoleDonor)).
			Expect().Status(http.StatusForbidden)
		response.JSON().Object().HasValue("code", "ERR-013")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ApproveInWrongState", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns).AddRow(donorProfileId, nil, nil, "available"))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine/"+medicineId+"/approve").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-012")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ConfirmReceipt", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, receiverUserId, "Ravi Receiver", "ravi@example.com", schemas.RoleReceiver, receiverProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns).AddRow(donorProfileId, strPtr(receiverProfileId), strPtr(receiverProfileId), "approved"))
		poolMock.ExpectExec("UPDATE medicare_schema.medicines SET status = 'received'").
			WithArgs(medicineId, receiverProfileId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		expect.POST("/api/medicine/"+medicineId+"/receive").
			WithHeader("Authorization", bearerToken(t, jwtMgr, receiverUserId, schemas.RoleReceiver)).
			Expect().Status(http.StatusOK)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ReceiveByWrongReceiver", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)
		strangerUserId := uuid.New().String()
		strangerProfileId := uuid.New().String()

		expectAuthenticate(poolMock, strangerUserId, "Sam Stranger", "sam@example.com", schemas.RoleReceiver, strangerProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns).AddRow(donorProfileId, strPtr(receiverProfileId), strPtr(receiverProfileId), "approved"))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine/"+medicineId+"/receive").
			WithHeader("Authorization", bearerToken(t, jwtMgr, strangerUserId, schemas.RoleReceiver)).
			Expect().Status(http.StatusForbidden)
		response.JSON().Object().HasValue("code", "ERR-014")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnknownListing", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, receiverUserId, "Ravi Receiver", "ravi@example.com", schemas.RoleReceiver, receiverProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT donor_id, receiver_id, requested_by, status").
			WithArgs(medicineId).
			WillReturnRows(pgxmock.NewRows(statusColumns))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/medicine/request/"+medicineId).
			WithHeader("Authorization", bearerToken(t, jwtMgr, receiverUserId, schemas.RoleReceiver)).
			Expect().Status(http.StatusNotFound)
		response.JSON().Object().HasValue("code", "ERR-011")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestGetMedicines(t *testing.T) {
	server, poolMock, _ := newTestServer(t)

	donorProfileId := uuid.New().String()
	medicineId := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	listingColumns := []string{
		"medicine_id", "name", "expiry", "quantity", "status", "created_at",
		"donor_profile", "donor_name", "donor_email",
		"receiver_profile", "receiver_name", "receiver_email",
		"requester_profile", "requester_name", "requester_email",
	}

	poolMock.ExpectQuery("SELECT m.medicine_id, m.name, m.expiry").
		WillReturnRows(pgxmock.NewRows(listingColumns).
			AddRow(medicineId, "Paracetamol 500mg", now.AddDate(1, 0, 0), 3, "available", now,
				donorProfileId, "Maya Donor", "maya@example.com",
				(*string)(nil), (*string)(nil), (*string)(nil),
				(*string)(nil), (*string)(nil), (*string)(nil)))

	expect := httpexpect.Default(t, server.URL)
	response := expect.GET("/api/medicine").Expect().Status(http.StatusOK)
	body := response.JSON().Object()
	body.Value("pagination").Object().HasValue("records", 1)
	records := body.Value("records").Array()
	records.Length().IsEqual(1)
	records.Value(0).Object().HasValue("_id", medicineId).HasValue("status", "available")
	records.Value(0).Object().NotContainsKey("receiver")

	if err := poolMock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestHomeStats(t *testing.T) {
	server, poolMock, _ := newTestServer(t)

	poolMock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"donors", "receivers", "approved_reviews"}).AddRow(5, 3, 7))

	expect := httpexpect.Default(t, server.URL)
	response := expect.GET("/api/home/stats").Expect().Status(http.StatusOK)
	response.JSON().IsEqual(map[string]interface{}{
		"success": true,
		"stats": map[string]interface{}{
			"totalDonors":          5,
			"totalReceivers":       3,
			"totalApprovedReviews": 7,
		},
	})

	if err := poolMock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAdminRoutes(t *testing.T) {
	t.Run("StatsAsStandaloneAdmin", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)
		adminId := uuid.New().String()

		// Not in the users table, resolved through the admins fallback.
		poolMock.ExpectQuery("SELECT name, email, role, donor_profile_id, receiver_profile_id").
			WithArgs(adminId).
			WillReturnRows(pgxmock.NewRows([]string{"name", "email", "role", "donor_profile_id", "receiver_profile_id"}))
		poolMock.ExpectQuery("SELECT name, email FROM medicare_schema.admins").
			WithArgs(adminId).
			WillReturnRows(pgxmock.NewRows([]string{"name", "email"}).AddRow("Root Admin", "admin@example.com"))
		poolMock.ExpectQuery("SELECT").
			WillReturnRows(pgxmock.NewRows([]string{"donors", "receivers", "medicines", "reviews", "users"}).
				AddRow(5, 3, 12, 7, 9))

		expect := httpexpect.Default(t, server.URL)
		response := expect.GET("/api/admin/stats").
			WithHeader("Authorization", bearerToken(t, jwtMgr, adminId, schemas.RoleAdmin)).
			Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("medicines", 12).HasValue("users", 9)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("ForbiddenForDonor", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)
		donorUserId := uuid.New().String()

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, uuid.New().String())

		expect := httpexpect.Default(t, server.URL)
		response := expect.GET("/api/admin/stats").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			Expect().Status(http.StatusForbidden)
		response.JSON().Object().HasValue("code", "ERR-010")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UnauthorizedWithoutToken", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		expect := httpexpect.Default(t, server.URL)
		response := expect.GET("/api/admin/stats").Expect().Status(http.StatusUnauthorized)
		response.JSON().Object().HasValue("code", "ERR-009")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestReviews(t *testing.T) {
	donorProfileId := uuid.New().String()
	receiverUserId := uuid.New().String()
	receiverProfileId := uuid.New().String()

	t.Run("CreateReview", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, receiverUserId, "Ravi Receiver", "ravi@example.com", schemas.RoleReceiver, receiverProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT EXISTS").
			WithArgs(donorProfileId).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		poolMock.ExpectExec("INSERT INTO medicare_schema.reviews").
			WithArgs(pgxmock.AnyArg(), receiverUserId, donorProfileId, 5, "Medicines arrived well packed", false, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/review").
			WithHeader("Authorization", bearerToken(t, jwtMgr, receiverUserId, schemas.RoleReceiver)).
			WithJSON(map[string]interface{}{
				"donorId": donorProfileId,
				"rating":  5,
				"comment": "Medicines arrived well packed",
			}).
			Expect().Status(http.StatusCreated)
		response.JSON().Object().HasValue("isApproved", false).HasValue("rating", 5)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("CreateReviewUnknownDonor", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, receiverUserId, "Ravi Receiver", "ravi@example.com", schemas.RoleReceiver, receiverProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectQuery("SELECT EXISTS").
			WithArgs(donorProfileId).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/review").
			WithHeader("Authorization", bearerToken(t, jwtMgr, receiverUserId, schemas.RoleReceiver)).
			WithJSON(map[string]interface{}{
				"donorId": donorProfileId,
				"rating":  4,
				"comment": "",
			}).
			Expect().Status(http.StatusNotFound)
		response.JSON().Object().HasValue("code", "ERR-021")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("PublicFeed", func(t *testing.T) {
		server, poolMock, _ := newTestServer(t)

		reviewColumns := []string{"review_id", "donor_id", "rating", "comment", "approved", "created_at", "user_id", "name", "email"}
		poolMock.ExpectQuery("SELECT r.review_id, r.donor_id").
			WillReturnRows(pgxmock.NewRows(reviewColumns).
				AddRow(uuid.New().String(), donorProfileId, 5, "Lifesaver, literally", true,
					time.Now().UTC(), receiverUserId, "Ravi Receiver", "ravi@example.com"))

		expect := httpexpect.Default(t, server.URL)
		response := expect.GET("/api/review").Expect().Status(http.StatusOK)
		reviews := response.JSON().Array()
		reviews.Length().IsEqual(1)
		reviews.Value(0).Object().HasValue("isApproved", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestProfile(t *testing.T) {
	donorUserId := uuid.New().String()
	donorProfileId := uuid.New().String()

	t.Run("GetOwnProfile", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)
		poolMock.ExpectQuery("SELECT u.name, u.email, u.phone").
			WithArgs(donorUserId).
			WillReturnRows(pgxmock.NewRows([]string{"name", "email", "phone", "role", "profile_picture_url", "verified_at", "association"}).
				AddRow("Maya Donor", "maya@example.com", "5551234567", schemas.RoleDonor, "", pgTime(time.Now()), "City Pharmacy"))

		expect := httpexpect.Default(t, server.URL)
		response := expect.GET("/api/profile").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			Expect().Status(http.StatusOK)
		body := response.JSON().Object()
		body.HasValue("phone", "5551234567").HasValue("profileId", donorProfileId).HasValue("association", "City Pharmacy")
		body.Value("user").Object().HasValue("isVerified", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectExec("UPDATE medicare_schema.users SET name").
			WithArgs("Maya D.", "", donorUserId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.PUT("/api/profile").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			WithJSON(map[string]interface{}{"name": "Maya D.", "phone": ""}).
			Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("success", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UpdateAssociation", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)
		poolMock.ExpectBegin()
		poolMock.ExpectExec("UPDATE medicare_schema.users SET name").
			WithArgs("", "", donorUserId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectExec("UPDATE medicare_schema.donor_profiles SET association").
			WithArgs("City Pharmacy", donorProfileId).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		poolMock.ExpectCommit()
		poolMock.ExpectRollback()

		expect := httpexpect.Default(t, server.URL)
		response := expect.PUT("/api/profile").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			WithJSON(map[string]interface{}{"association": "City Pharmacy"}).
			Expect().Status(http.StatusOK)
		response.JSON().Object().HasValue("success", true)

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})

	t.Run("UploadPhotoWithoutFile", func(t *testing.T) {
		server, poolMock, jwtMgr := newTestServer(t)

		expectAuthenticate(poolMock, donorUserId, "Maya Donor", "maya@example.com", schemas.RoleDonor, donorProfileId)

		expect := httpexpect.Default(t, server.URL)
		response := expect.POST("/api/profile/upload-photo").
			WithHeader("Authorization", bearerToken(t, jwtMgr, donorUserId, schemas.RoleDonor)).
			WithMultipart().WithFormField("note", "no file attached").
			Expect().Status(http.StatusBadRequest)
		response.JSON().Object().HasValue("code", "ERR-019")

		if err := poolMock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestHealth(t *testing.T) {
	server, poolMock, _ := newTestServer(t)

	poolMock.ExpectPing()

	expect := httpexpect.Default(t, server.URL)
	expect.GET("/health").Expect().Status(http.StatusOK)

	if err := poolMock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
