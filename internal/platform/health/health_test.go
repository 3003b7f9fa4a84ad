package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/database"
)

func TestHealthAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	r := gin.New()
	NewHandler(db, "service-pet-manager").RegisterRoutes(r)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "service-pet-manager")
	}
}
