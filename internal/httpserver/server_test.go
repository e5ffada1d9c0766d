package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campos-joao/cassino/internal/identity"
	"github.com/campos-joao/cassino/internal/store/gormstore"
	"github.com/campos-joao/cassino/pkg/ledger"
)

type testHarness struct {
	server *Server
	store  *gormstore.Store
}

func newTestHarness(test *testing.T) *testHarness {
	test.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.AutoMigrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	store := gormstore.New(db)

	ledgerService, err := ledger.NewService(store, time.Now,
		ledger.WithOperationLogger(NewZapOperationLogger(zap.NewNop())))
	if err != nil {
		test.Fatalf("ledger service: %v", err)
	}
	identityService, err := identity.NewService(store, []byte("test-signing-key"), time.Now)
	if err != nil {
		test.Fatalf("identity service: %v", err)
	}
	server, err := New(Config{SessionSigningKey: "test-signing-key"}, ledgerService, identityService, zap.NewNop())
	if err != nil {
		test.Fatalf("server: %v", err)
	}
	return &testHarness{server: server, store: store}
}

func (harness *testHarness) do(test *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.AddCookie(&http.Cookie{Name: defaultCookieName, Value: token})
	}
	recorder := httptest.NewRecorder()
	harness.server.Router().ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(test *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	test.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func (harness *testHarness) registerPlayer(test *testing.T, email string) string {
	test.Helper()
	recorder := harness.do(test, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "Secret1pass",
		"name":     "Test Player",
	})
	if recorder.Code != http.StatusCreated {
		test.Fatalf("register returned %d: %s", recorder.Code, recorder.Body.String())
	}
	token, _ := decodeBody(test, recorder)["token"].(string)
	if token == "" {
		test.Fatalf("register returned no token")
	}
	return token
}

func TestRegisterSetsCookieAndProfileRoundTrip(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)

	recorder := harness.do(test, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "player@example.test",
		"password": "Secret1pass",
		"name":     "Player",
	})
	if recorder.Code != http.StatusCreated {
		test.Fatalf("register returned %d: %s", recorder.Code, recorder.Body.String())
	}
	cookieSet := false
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == defaultCookieName && cookie.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		test.Fatalf("register did not set the session cookie")
	}
	token, _ := decodeBody(test, recorder)["token"].(string)

	profile := harness.do(test, http.MethodGet, "/api/user/profile", token, nil)
	if profile.Code != http.StatusOK {
		test.Fatalf("profile returned %d: %s", profile.Code, profile.Body.String())
	}
	payload := decodeBody(test, profile)
	user, _ := payload["user"].(map[string]any)
	if user["email"] != "player@example.test" {
		test.Fatalf("profile email mismatch: %v", user)
	}
	if user["balance"] != "0.00" {
		test.Fatalf("fresh account balance: %v", user["balance"])
	}
}

func TestRegisterValidationStatuses(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)

	weak := harness.do(test, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "weak@example.test", "password": "short", "name": "W",
	})
	if weak.Code != http.StatusBadRequest {
		test.Fatalf("weak password returned %d", weak.Code)
	}

	harness.registerPlayer(test, "dup@example.test")
	duplicate := harness.do(test, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "dup@example.test", "password": "Secret1pass", "name": "D",
	})
	if duplicate.Code != http.StatusBadRequest {
		test.Fatalf("duplicate email returned %d: %s", duplicate.Code, duplicate.Body.String())
	}
}

func TestLoginStatuses(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)
	harness.registerPlayer(test, "login@example.test")

	ok := harness.do(test, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "login@example.test", "password": "Secret1pass",
	})
	if ok.Code != http.StatusOK {
		test.Fatalf("login returned %d: %s", ok.Code, ok.Body.String())
	}
	wrong := harness.do(test, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "login@example.test", "password": "Wrong1pass",
	})
	if wrong.Code != http.StatusUnauthorized {
		test.Fatalf("wrong password returned %d", wrong.Code)
	}
}

func TestProtectedRoutesRequireSession(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)

	missing := harness.do(test, http.MethodGet, "/api/user/profile", "", nil)
	if missing.Code != http.StatusUnauthorized {
		test.Fatalf("missing token returned %d", missing.Code)
	}
	garbage := harness.do(test, http.MethodGet, "/api/user/profile", "not-a-token", nil)
	if garbage.Code != http.StatusUnauthorized {
		test.Fatalf("garbage token returned %d", garbage.Code)
	}
}

func TestDepositUpdatesBalanceAndEnforcesBounds(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)
	token := harness.registerPlayer(test, "deposit@example.test")

	accepted := harness.do(test, http.MethodPost, "/api/user/deposit", token, map[string]string{
		"amount": "50.00", "payment_method": "pix",
	})
	if accepted.Code != http.StatusOK {
		test.Fatalf("deposit returned %d: %s", accepted.Code, accepted.Body.String())
	}
	if balance := decodeBody(test, accepted)["balance"]; balance != "50.00" {
		test.Fatalf("balance after deposit: %v", balance)
	}

	belowMinimum := harness.do(test, http.MethodPost, "/api/user/deposit", token, map[string]string{
		"amount": "5.00", "payment_method": "pix",
	})
	if belowMinimum.Code != http.StatusBadRequest {
		test.Fatalf("below-minimum deposit returned %d", belowMinimum.Code)
	}

	history := harness.do(test, http.MethodGet, "/api/user/deposit", token, nil)
	if history.Code != http.StatusOK {
		test.Fatalf("deposit history returned %d", history.Code)
	}
	deposits, _ := decodeBody(test, history)["deposits"].([]any)
	if len(deposits) != 1 {
		test.Fatalf("expected one deposit entry, got %d", len(deposits))
	}
}

func TestGameRoundSettlesAndRejectsOverdraw(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)
	token := harness.registerPlayer(test, "game@example.test")

	if recorder := harness.do(test, http.MethodPost, "/api/user/deposit", token, map[string]string{
		"amount": "100.00", "payment_method": "card",
	}); recorder.Code != http.StatusOK {
		test.Fatalf("seed deposit returned %d", recorder.Code)
	}

	won := harness.do(test, http.MethodPost, "/api/user/game", token, map[string]any{
		"game_type":  "roulette",
		"bet_amount": "40.00",
		"win_amount": "60.00",
		"result":     map[string]any{"number": 17},
	})
	if won.Code != http.StatusOK {
		test.Fatalf("game round returned %d: %s", won.Code, won.Body.String())
	}
	if balance := decodeBody(test, won)["balance"]; balance != "120.00" {
		test.Fatalf("balance after winning round: %v", balance)
	}

	overdraw := harness.do(test, http.MethodPost, "/api/user/game", token, map[string]any{
		"game_type":  "roulette",
		"bet_amount": "500.00",
	})
	if overdraw.Code != http.StatusUnprocessableEntity {
		test.Fatalf("overdraw returned %d: %s", overdraw.Code, overdraw.Body.String())
	}
	if balance := decodeBody(test, overdraw)["message"]; balance != "insufficient balance" {
		test.Fatalf("overdraw message: %v", balance)
	}
}

func TestTransactionsEndpointListsHistory(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)
	token := harness.registerPlayer(test, "history@example.test")

	if recorder := harness.do(test, http.MethodPost, "/api/user/deposit", token, map[string]string{
		"amount": "25.00", "payment_method": "pix",
	}); recorder.Code != http.StatusOK {
		test.Fatalf("deposit returned %d", recorder.Code)
	}

	recorder := harness.do(test, http.MethodGet, "/api/user/transactions", token, nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("transactions returned %d", recorder.Code)
	}
	payload := decodeBody(test, recorder)
	if payload["balance"] != "25.00" {
		test.Fatalf("balance: %v", payload["balance"])
	}
	transactions, _ := payload["transactions"].([]any)
	if len(transactions) != 1 {
		test.Fatalf("expected one transaction, got %d", len(transactions))
	}
}

func TestAdminRoutes(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)
	playerToken := harness.registerPlayer(test, "member@example.test")
	adminToken := harness.registerPlayer(test, "admin@example.test")

	forbidden := harness.do(test, http.MethodGet, "/api/admin/users", playerToken, nil)
	if forbidden.Code != http.StatusForbidden {
		test.Fatalf("player hitting admin route returned %d", forbidden.Code)
	}

	ctx := context.Background()
	adminAccount, err := harness.store.GetAccountByEmail(ctx, "admin@example.test")
	if err != nil {
		test.Fatalf("load admin account: %v", err)
	}
	if err := harness.store.UpdateAccountRole(ctx, adminAccount.AccountID, ledger.RoleAdmin); err != nil {
		test.Fatalf("promote admin: %v", err)
	}

	listed := harness.do(test, http.MethodGet, "/api/admin/users", adminToken, nil)
	if listed.Code != http.StatusOK {
		test.Fatalf("admin list returned %d: %s", listed.Code, listed.Body.String())
	}
	users, _ := decodeBody(test, listed)["users"].([]any)
	if len(users) != 2 {
		test.Fatalf("expected two accounts, got %d", len(users))
	}

	member, err := harness.store.GetAccountByEmail(ctx, "member@example.test")
	if err != nil {
		test.Fatalf("load member account: %v", err)
	}
	suspended := harness.do(test, http.MethodPut, "/api/admin/users", adminToken, map[string]string{
		"user_id": member.AccountID,
		"status":  "suspended",
	})
	if suspended.Code != http.StatusOK {
		test.Fatalf("suspend returned %d: %s", suspended.Code, suspended.Body.String())
	}

	blocked := harness.do(test, http.MethodGet, "/api/user/profile", playerToken, nil)
	if blocked.Code != http.StatusForbidden {
		test.Fatalf("suspended profile returned %d", blocked.Code)
	}

	badStatus := harness.do(test, http.MethodPut, "/api/admin/users", adminToken, map[string]string{
		"user_id": member.AccountID,
		"status":  "frozen",
	})
	if badStatus.Code != http.StatusBadRequest {
		test.Fatalf("unknown status returned %d", badStatus.Code)
	}
}

func TestLogoutClearsCookie(test *testing.T) {
	test.Parallel()
	harness := newTestHarness(test)

	recorder := harness.do(test, http.MethodPost, "/api/auth/logout", "", nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("logout returned %d", recorder.Code)
	}
	cleared := false
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == defaultCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		test.Fatalf("logout did not clear the session cookie")
	}
}
