package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedRequest(t *testing.T, status int, mutate func(*http.Request)) (*httptest.ResponseRecorder, *logrus.Entry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/probe", func(c *gin.Context) {
		c.Set("user_id", "u1")
		c.JSON(status, gin.H{"ok": status < 400})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)

	require.Len(t, hook.Entries, 1)
	return w, hook.LastEntry()
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	w, e := loggedRequest(t, http.StatusOK, func(req *http.Request) {
		req.Header.Set("X-Request-Id", "req-42")
	})

	assert.Equal(t, "req-42", e.Data["request_id"])
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusOK, e.Data["status"])
	assert.Equal(t, "u1", e.Data["user_id"])
	assert.Equal(t, logrus.InfoLevel, e.Level)
	assert.Equal(t, "request", e.Message)
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	w, e := loggedRequest(t, http.StatusOK, nil)

	assert.NotEmpty(t, e.Data["request_id"])
	assert.Equal(t, e.Data["request_id"], w.Header().Get("X-Request-Id"))
}

func TestRequestLoggerMarksWebSocketSessions(t *testing.T) {
	_, e := loggedRequest(t, http.StatusOK, func(req *http.Request) {
		req.Header.Set("Upgrade", "websocket")
	})

	assert.Equal(t, "ws session closed", e.Message)
	assert.Equal(t, logrus.InfoLevel, e.Level)
}

func TestRequestLoggerLevelsFollowStatus(t *testing.T) {
	_, e := loggedRequest(t, http.StatusBadRequest, nil)
	assert.Equal(t, logrus.WarnLevel, e.Level)

	_, e = loggedRequest(t, http.StatusInternalServerError, nil)
	assert.Equal(t, logrus.ErrorLevel, e.Level)
}
