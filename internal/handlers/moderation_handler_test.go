package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/database"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/notify"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/routes"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret     = "test-secret"
	testAdminToken = "test-admin-token"
)

type harness struct {
	app *fiber.App
	db  *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	svc, err := services.NewModerationService(db, config.DefaultPolicy(), services.Options{
		Scale:    services.FixedScale(1),
		Notifier: notify.LogNotifier{},
	})
	require.NoError(t, err)

	cfg := &config.Config{JWTSecret: testSecret, AdminToken: testAdminToken, CORSOrigins: "*"}
	app := fiber.New()
	routes.Setup(app, cfg, db, handlers.NewHealthHandler(services.FixedScale(1)), handlers.NewModerationHandler(svc))
	return &harness{app: app, db: db}
}

func (h *harness) user(t *testing.T, role string) uuid.UUID {
	t.Helper()
	u := models.User{Email: uuid.NewString() + "@example.com", Role: role, CreatedAt: time.Now().AddDate(0, -1, 0)}
	require.NoError(t, h.db.Create(&u).Error)
	return u.ID
}

func (h *harness) post(t *testing.T, author uuid.UUID) string {
	t.Helper()
	p := models.Post{UserID: author, Title: "title", Body: "body"}
	require.NoError(t, h.db.Create(&p).Error)
	return p.ID.String()
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestCreateReportRequiresToken(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodPost, "/api/reports", map[string]string{"content_type": "post"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, true, body["error"])
}

func TestCreateReportStatusCodes(t *testing.T) {
	h := newHarness(t)
	author := h.user(t, models.RoleUser)
	reporter := h.user(t, models.RoleUser)
	postID := h.post(t, author)

	req := map[string]string{"content_type": "post", "content_id": postID, "reason": "spam"}

	status, body := h.do(t, http.MethodPost, "/api/reports", req, map[string]string{"Authorization": bearer(t, reporter)})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, false, body["auto_hidden"])
	score := body["score"].(map[string]any)
	assert.EqualValues(t, 1, score["reports_count"])

	status, _ = h.do(t, http.MethodPost, "/api/reports", req, map[string]string{"Authorization": bearer(t, reporter)})
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = h.do(t, http.MethodPost, "/api/reports", req, map[string]string{"Authorization": bearer(t, author)})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	bad := map[string]string{"content_type": "post", "content_id": postID, "reason": "boring"}
	status, body = h.do(t, http.MethodPost, "/api/reports", bad, map[string]string{"Authorization": bearer(t, reporter)})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["message"], "validation failed")

	missing := map[string]string{"content_type": "post", "content_id": uuid.NewString(), "reason": "spam"}
	status, _ = h.do(t, http.MethodPost, "/api/reports", missing, map[string]string{"Authorization": bearer(t, reporter)})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestModeratorRoutesRequireRole(t *testing.T) {
	h := newHarness(t)
	plain := h.user(t, models.RoleUser)

	status, _ := h.do(t, http.MethodGet, "/api/admin/moderation/reports", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := h.do(t, http.MethodGet, "/api/admin/moderation/reports", nil, map[string]string{"Authorization": bearer(t, plain)})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Moderator access required", body["message"])

	status, body = h.do(t, http.MethodGet, "/api/admin/moderation/reports", nil, map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestResolveReportFlow(t *testing.T) {
	h := newHarness(t)
	author := h.user(t, models.RoleUser)
	reporter := h.user(t, models.RoleUser)
	moderator := h.user(t, models.RoleModerator)
	postID := h.post(t, author)

	status, body := h.do(t, http.MethodPost, "/api/reports",
		map[string]string{"content_type": "post", "content_id": postID, "reason": "abuse"},
		map[string]string{"Authorization": bearer(t, reporter)})
	require.Equal(t, fiber.StatusCreated, status, body)
	reportID := body["report"].(map[string]any)["id"].(string)

	path := "/api/admin/moderation/reports/" + reportID
	resolve := map[string]string{"status": "confirmed", "note": "clear abuse"}

	// the admin token has no user identity to record as resolver
	status, _ = h.do(t, http.MethodPut, path, resolve, map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = h.do(t, http.MethodPut, path, resolve, map[string]string{"Authorization": bearer(t, moderator)})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "confirmed", body["resolved_status"])

	status, _ = h.do(t, http.MethodPut, path, resolve, map[string]string{"Authorization": bearer(t, moderator)})
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = h.do(t, http.MethodPut, "/api/admin/moderation/reports/not-a-uuid", resolve, map[string]string{"Authorization": bearer(t, moderator)})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = h.do(t, http.MethodGet, "/api/admin/moderation/reports?status=confirmed", nil, map[string]string{"Authorization": bearer(t, moderator)})
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
}

func TestScoreEndpoints(t *testing.T) {
	h := newHarness(t)
	admin := map[string]string{"X-Admin-Token": testAdminToken}

	status, _ := h.do(t, http.MethodGet, "/api/admin/moderation/scores/post/"+uuid.NewString(), nil, admin)
	assert.Equal(t, fiber.StatusNotFound, status)

	author := h.user(t, models.RoleUser)
	reporter := h.user(t, models.RoleUser)
	postID := h.post(t, author)
	status, body := h.do(t, http.MethodPost, "/api/reports",
		map[string]string{"content_type": "post", "content_id": postID, "reason": "spam"},
		map[string]string{"Authorization": bearer(t, reporter)})
	require.Equal(t, fiber.StatusCreated, status)
	reportID := body["report"].(map[string]any)["id"].(string)

	// already folded in at submission
	status, body = h.do(t, http.MethodPost, "/api/admin/moderation/reports/"+reportID+"/apply", nil, admin)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, false, body["applied"])

	status, body = h.do(t, http.MethodPost, "/api/admin/moderation/scores/post/"+postID+"/reset", map[string]string{"reason": "cleanup"}, admin)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 0, body["reports_count"])

	status, body = h.do(t, http.MethodGet, "/api/admin/moderation/site-scale", nil, admin)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["site_scale"])
}

func TestAnalyzeText(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, models.RoleUser)

	status, body := h.do(t, http.MethodPost, "/api/moderation/analyze",
		map[string]string{"content_type": "post", "text": "hi"},
		map[string]string{"Authorization": bearer(t, u)})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["flagged"])
	assert.NotEmpty(t, body["signals"])

	status, _ = h.do(t, http.MethodPost, "/api/moderation/analyze",
		map[string]string{"content_type": "poem", "text": "hello"},
		map[string]string{"Authorization": bearer(t, u)})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)
	prev := database.DB
	database.DB = h.db
	t.Cleanup(func() { database.DB = prev })

	status, body := h.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["site_scale"])
}
