package handler_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"buyer_crm_backend/internal/auth"
	apphttp "buyer_crm_backend/internal/http"
	"buyer_crm_backend/internal/http/router"
	"buyer_crm_backend/internal/leads"
	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/platform/config"
	"buyer_crm_backend/platform/logger"
	"buyer_crm_backend/platform/ratelimit"
	"buyer_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	t        *testing.T
	engine   *gin.Engine
	provider *auth.JWTProvider
}

func newServer(t *testing.T, writes int) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTAccessSecret:  "handler-test-secret",
		CORSOrigins:      []string{"http://localhost:3000"},
		RateLimitWrites:  writes,
		RateLimitImports: 5,
		RateLimitWindow:  time.Minute,
	}
	provider := auth.NewJWTProvider(cfg)
	module := leads.NewModule(repository.NewMemoryStore(), validator.New(), prometheus.NewRegistry(), logger.Discard())

	engine := router.New(&apphttp.App{
		Config:  cfg,
		Logger:  logger.Discard(),
		Auth:    auth.AuthRequired(provider),
		Limiter: ratelimit.NewLocalLimiter(),
		Modules: []apphttp.Module{module},
	})
	return &server{t: t, engine: engine, provider: provider}
}

func (s *server) token(who domain.Identity) string {
	s.t.Helper()
	token, err := s.provider.Issue(who, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *server) do(method, path string, who *domain.Identity, contentType string, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*who))
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *server) json(method, path string, who domain.Identity, payload any) *httptest.ResponseRecorder {
	s.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(s.t, err)
	return s.do(method, path, &who, "application/json", string(body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func buyer(name string) map[string]any {
	return map[string]any{
		"fullName":     name,
		"email":        "buyer@example.com",
		"phone":        "9876543210",
		"city":         "Chandigarh",
		"propertyType": "Apartment",
		"bhk":          "2",
		"purpose":      "Buy",
		"budgetMin":    2500000,
		"budgetMax":    3500000,
		"timeline":     "0-3m",
		"source":       "Website",
		"tags":         []string{"hot"},
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details []struct {
		Path    string `json:"path"`
		Message string `json:"message"`
	} `json:"details"`
}

func TestCreateUpdateAndHistory(t *testing.T) {
	s := newServer(t, 100)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser, Email: "agent@example.com"}

	rec := s.json(http.MethodPost, "/api/v1/buyers", who, buyer("Neha Verma"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.LeadView](t, rec)
	assert.Equal(t, "2", created.BHK)
	assert.Equal(t, "0-3m", created.Timeline)
	assert.Equal(t, who.ID, created.OwnerID)

	stale := buyer("Neha V")
	stale["updatedAt"] = created.UpdatedAt.Add(-time.Second)
	rec = s.json(http.MethodPut, "/api/v1/buyers/"+created.ID.String(), who, stale)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "Conflict", decode[errorBody](t, rec).Kind)

	fresh := buyer("Neha V")
	fresh["status"] = "Contacted"
	fresh["updatedAt"] = created.UpdatedAt
	rec = s.json(http.MethodPut, "/api/v1/buyers/"+created.ID.String(), who, fresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.LeadView](t, rec)
	assert.Equal(t, domain.StatusContacted, updated.Status)

	rec = s.do(http.MethodGet, "/api/v1/buyers/"+created.ID.String()+"/history?limit=10", &who, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[struct {
		Items []struct {
			Kind      string `json:"kind"`
			ChangedBy string `json:"changedBy"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "updated", history.Items[0].Kind)
	assert.Equal(t, "agent@example.com", history.Items[0].ChangedBy)
}

func TestUpdateRequiresUpdatedAt(t *testing.T) {
	s := newServer(t, 100)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}

	created := decode[domain.LeadView](t, s.json(http.MethodPost, "/api/v1/buyers", who, buyer("Om Prakash")))
	rec := s.json(http.MethodPut, "/api/v1/buyers/"+created.ID.String(), who, buyer("Om"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReportsEveryFieldError(t *testing.T) {
	s := newServer(t, 100)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}

	bad := buyer("J")
	bad["propertyType"] = "Plot"
	bad["budgetMin"] = 5000000
	bad["budgetMax"] = 100

	rec := s.json(http.MethodPost, "/api/v1/buyers", who, bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "ValidationError", body.Kind)

	paths := map[string]bool{}
	for _, d := range body.Details {
		paths[d.Path] = true
	}
	assert.True(t, paths["fullName"])
	assert.True(t, paths["bhk"])
	assert.True(t, paths["budgetMax"])
}

func TestRoutesRequireToken(t *testing.T) {
	s := newServer(t, 100)
	rec := s.do(http.MethodGet, "/api/v1/buyers", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/health", nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOtherUsersLeadIsForbidden(t *testing.T) {
	s := newServer(t, 100)
	owner := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}
	other := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}

	created := decode[domain.LeadView](t, s.json(http.MethodPost, "/api/v1/buyers", owner, buyer("Pooja Rani")))

	rec := s.do(http.MethodGet, "/api/v1/buyers/"+created.ID.String(), &other, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodDelete, "/api/v1/buyers/"+created.ID.String(), &other, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodDelete, "/api/v1/buyers/"+created.ID.String(), &owner, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestImportCSVThenExport(t *testing.T) {
	s := newServer(t, 100)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}

	input := strings.Join([]string{
		"fullName,phone,city,propertyType,bhk,purpose,timeline,source,tags",
		"Ravi Kumar,9876500001,Mohali,Villa,4,Buy,>6m,Referral,\"nri, villa\"",
		"Sana Mir,9876500002,Zirakpur,Office,,Rent,Exploring,Call,",
	}, "\n")
	rec := s.do(http.MethodPost, "/api/v1/buyers/import", &who, "text/csv", input)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[struct {
		Imported int `json:"imported"`
	}](t, rec).Imported)

	rec = s.do(http.MethodGet, "/api/v1/buyers/export?sort=fullName&direction=asc", &who, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "buyers.csv")

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Ravi Kumar", records[1][0])
	assert.Equal(t, "4", records[1][5])
	assert.Equal(t, "nri, villa", records[1][12])

	rec = s.do(http.MethodGet, "/api/v1/buyers?q=sana&city=Zirakpur", &who, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Total int `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, page.Total)
}

func TestImportRejectsBatchWithBadRow(t *testing.T) {
	s := newServer(t, 100)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}

	good := buyer("Tara Singh")
	bad := buyer("Uma Devi")
	bad["phone"] = "12"
	rec := s.json(http.MethodPost, "/api/v1/buyers/import", who, []any{good, bad})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/buyers", &who, "", "")
	assert.Equal(t, 0, decode[struct {
		Total int `json:"total"`
	}](t, rec).Total)
}

func TestWritesAreRateLimited(t *testing.T) {
	s := newServer(t, 2)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}

	for i := 0; i < 2; i++ {
		rec := s.json(http.MethodPost, "/api/v1/buyers", who, buyer("Vikram Rao"))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := s.json(http.MethodPost, "/api/v1/buyers", who, buyer("Vikram Rao"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.do(http.MethodGet, "/api/v1/buyers", &who, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe(t *testing.T) {
	s := newServer(t, 100)
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin, Email: "admin@example.com"}

	rec := s.do(http.MethodGet, "/api/v1/me", &who, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "ADMIN", me["role"])
	assert.Equal(t, "admin@example.com", me["email"])
}
