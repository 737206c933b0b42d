package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akeren/waitlist-intake/config"
	"github.com/akeren/waitlist-intake/config/router"
	"github.com/akeren/waitlist-intake/domain"
	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/akeren/waitlist-intake/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const origin = "https://www.inkledger.app"

type WaitlistAPITestSuite struct {
	suite.Suite
	db      *gorm.DB
	server  *httptest.Server
	ops     *httptest.Server
	baseURL string
	logger  *log.Logger
}

func (suite *WaitlistAPITestSuite) SetupSuite() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(suite.db.AutoMigrate(models.ModelRegistry...))

	suite.logger = log.NewLogger(io.Discard)
}

func (suite *WaitlistAPITestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		_ = sqlDB.Close()
	}
}

// SetupTest starts a fresh router so every test gets its own rate-limit counters.
func (suite *WaitlistAPITestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("DELETE FROM waitlist").Error)

	appConfig := &config.ApplicationConfig{
		DB:     suite.db,
		Logger: suite.logger,
	}
	appConfig.RouterService = router.CreateRouterService(suite.logger, nil, &router.RouterConfig{
		AllowedOrigins:    router.NewOriginAllowList([]string{origin, "http://localhost:3000"}),
		RateLimitRequests: 20,
		RateLimitWindow:   time.Hour,
		RequestTimeout:    10 * time.Second,
	})

	domain.SetupCoreDomain(appConfig)

	suite.server = httptest.NewServer(appConfig.RouterService.GetEngine())
	suite.ops = httptest.NewServer(appConfig.RouterService.GetOpsEngine())
	suite.baseURL = suite.server.URL
}

func (suite *WaitlistAPITestSuite) TearDownTest() {
	suite.server.Close()
	suite.ops.Close()
}

func (suite *WaitlistAPITestSuite) do(method, path, reqOrigin, body string) (*http.Response, string) {
	req, err := http.NewRequest(method, suite.baseURL+path, strings.NewReader(body))
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "integration-test")
	if reqOrigin != "" {
		req.Header.Set("Origin", reqOrigin)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	return resp, string(raw)
}

func (suite *WaitlistAPITestSuite) entries() []models.WaitlistEntry {
	var rows []models.WaitlistEntry
	suite.Require().NoError(suite.db.Order("id").Find(&rows).Error)
	return rows
}

func (suite *WaitlistAPITestSuite) TestSubmit_StoresNormalizedEntry() {
	resp, body := suite.do(http.MethodPost, "/waitlist", origin, `{"email":"  Jane.Doe@Example.COM ","source":" landing-hero "}`)

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.JSONEq(`{"ok":true}`, body)
	suite.Equal(origin, resp.Header.Get("Access-Control-Allow-Origin"))
	suite.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))

	rows := suite.entries()
	suite.Require().Len(rows, 1)
	suite.Equal("jane.doe@example.com", rows[0].Email)
	suite.Equal("landing-hero", rows[0].Source)
	suite.Equal("127.0.0.1", rows[0].ClientIP)
	suite.Equal("integration-test", rows[0].UserAgent)
	_, err := time.Parse("2006-01-02T15:04:05.000Z", rows[0].CreatedAt)
	suite.NoError(err)
}

func (suite *WaitlistAPITestSuite) TestSubmit_IsIdempotent() {
	for _, body := range []string{
		`{"email":"a@example.com","source":"first"}`,
		`{"email":"A@EXAMPLE.com","source":"second"}`,
	} {
		resp, raw := suite.do(http.MethodPost, "/waitlist", origin, body)
		suite.Equal(http.StatusOK, resp.StatusCode)
		suite.JSONEq(`{"ok":true}`, raw)
	}

	rows := suite.entries()
	suite.Require().Len(rows, 1)
	suite.Equal("first", rows[0].Source)
}

func (suite *WaitlistAPITestSuite) TestSubmit_ConcurrentDuplicatesStoreOneRow() {
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, suite.baseURL+"/waitlist", strings.NewReader(`{"email":"race@example.com"}`))
			req.Header.Set("Origin", origin)
			if resp, err := http.DefaultClient.Do(req); err == nil {
				_ = resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	suite.Len(suite.entries(), 1)
}

func (suite *WaitlistAPITestSuite) TestSubmit_DefaultSource() {
	resp, _ := suite.do(http.MethodPost, "/waitlist", origin, `{"email":"x@y.io"}`)
	suite.Equal(http.StatusOK, resp.StatusCode)

	rows := suite.entries()
	suite.Require().Len(rows, 1)
	suite.Equal("unknown", rows[0].Source)
}

func (suite *WaitlistAPITestSuite) TestSubmit_HoneypotStoresNothing() {
	resp, body := suite.do(http.MethodPost, "/waitlist", origin, `{"email":"bot@example.com","hp":"gotcha"}`)

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.JSONEq(`{"ok":true}`, body)
	suite.Empty(suite.entries())
}

func (suite *WaitlistAPITestSuite) TestSubmit_Rejections() {
	cases := []struct {
		name   string
		method string
		path   string
		origin string
		body   string
		status int
		want   string
	}{
		{"invalid email", http.MethodPost, "/waitlist", origin, `{"email":"not an email"}`, 400, `{"ok":false,"error":"Invalid email"}`},
		{"malformed json", http.MethodPost, "/waitlist", origin, `{"email":`, 400, `{"ok":false,"error":"Invalid JSON"}`},
		{"missing origin", http.MethodPost, "/waitlist", "", `{"email":"a@b.co"}`, 403, `{"ok":false,"error":"Forbidden"}`},
		{"foreign origin", http.MethodPost, "/waitlist", "https://evil.example", `{"email":"a@b.co"}`, 403, `{"ok":false,"error":"Forbidden"}`},
		{"wrong method", http.MethodGet, "/waitlist", origin, "", 405, `{"ok":false,"error":"Method not allowed"}`},
		{"unknown path", http.MethodPost, "/subscribe", origin, `{"email":"a@b.co"}`, 404, `{"ok":false,"error":"Not found"}`},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			resp, body := suite.do(tc.method, tc.path, tc.origin, tc.body)
			suite.Equal(tc.status, resp.StatusCode)
			suite.JSONEq(tc.want, body)
		})
	}

	suite.Empty(suite.entries())
}

func (suite *WaitlistAPITestSuite) TestForbidden_UsesFallbackOrigin() {
	resp, _ := suite.do(http.MethodPost, "/waitlist", "https://evil.example", `{"email":"a@b.co"}`)

	suite.Equal(http.StatusForbidden, resp.StatusCode)
	suite.Equal("https://inkledger.app", resp.Header.Get("Access-Control-Allow-Origin"))
	suite.Equal("Origin", resp.Header.Get("Vary"))
}

func (suite *WaitlistAPITestSuite) TestPreflight() {
	resp, body := suite.do(http.MethodOptions, "/waitlist", "http://localhost:3000", "")

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.JSONEq(`{"ok":true}`, body)
	suite.Equal("http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	suite.Equal("POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func (suite *WaitlistAPITestSuite) TestRateLimit() {
	for i := range 20 {
		resp, _ := suite.do(http.MethodPost, "/waitlist", origin, `{"email":"limit@example.com"}`)
		suite.Require().Equal(http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp, body := suite.do(http.MethodPost, "/waitlist", origin, `{"email":"limit@example.com"}`)
	suite.Equal(http.StatusTooManyRequests, resp.StatusCode)
	suite.JSONEq(`{"ok":false,"error":"Too many requests"}`, body)
	suite.Equal("3600", resp.Header.Get("Retry-After"))
}

func (suite *WaitlistAPITestSuite) TestHealthOnOpsListener() {
	resp, err := http.Get(suite.ops.URL + "/health")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)
}

func TestWaitlistAPITestSuite(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("set RUN_INTEGRATION_TESTS=true to run integration tests")
	}
	suite.Run(t, new(WaitlistAPITestSuite))
}
