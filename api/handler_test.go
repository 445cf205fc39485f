package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budget/config"
	"budget/errs"
	"budget/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode},
		Database: config.DatabaseConfig{QueryTimeout: 5 * time.Second},
		JWT:      config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
		Cascade:  config.CascadeConfig{DeleteSharedBudgets: true},
	}
}

func testTokens(t *testing.T, cfg *config.Config) *middleware.TokenService {
	t.Helper()
	tokens, err := middleware.NewTokenService(cfg.JWT)
	require.NoError(t, err)
	return tokens
}

func setUserIDMiddleware(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFail(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "已分类错误原样返回消息",
			err:         errs.NotFound("预算不存在"),
			wantStatus:  http.StatusNotFound,
			wantCode:    "not_found",
			wantMessage: "预算不存在",
		},
		{
			name:        "数据库错误不暴露详情",
			err:         errs.Database(errors.New("Error 1045: Access denied for user 'root'@'10.0.0.3'")),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "database_error",
			wantMessage: "服务器内部错误",
		},
		{
			name:        "未分类错误视为内部错误",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "服务器内部错误",
		},
		{
			name:        "超时",
			err:         errs.Database(context.DeadlineExceeded),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "timeout",
			wantMessage: "请求超时，请稍后重试",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil)

			Fail(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.NotContains(t, w.Body.String(), "Access denied")
		})
	}
}

func TestParseID(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		id, err := parseID(c, "id")
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, id)
	})

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/items/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/items/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/items/0", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/items/-1", "").Code)
}

func TestBindError(t *testing.T) {
	cfg := testConfig()
	err := bindError(cfg, errors.New("Key: 'RegisterRequest.Name' Error:Field validation for 'Name' failed on the 'required' tag"))
	assert.Equal(t, errs.KindBadRequest, errs.KindOf(err))
	assert.Contains(t, errs.Public(err), "Name")

	cfg.Server.Mode = "release"
	err = bindError(cfg, errors.New("detail"))
	assert.Equal(t, "参数错误", errs.Public(err))
}
