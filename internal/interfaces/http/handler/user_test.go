package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserEndpoints(t *testing.T) {
	t.Run("admin creates a staff user", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)
		sch := app.seedSchool(t, "Northside High")

		w := app.request(t, http.MethodPost, "/api/v1/users", token, gin.H{
			"username":  "jdoe",
			"email":     "jdoe@example.com",
			"password":  "s3cret-enough",
			"role":      "SCHOOL_STAFF",
			"school_id": sch.ID,
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decodeResponse(t, w)
		assert.Equal(t, "jdoe", dataField(t, resp, "username"))
		// The password hash never leaves the service layer.
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("staff cannot list users", func(t *testing.T) {
		app := newTestApp(t)
		sch := app.seedSchool(t, "Northside High")
		token := app.staffToken(t, sch.ID)

		w := app.request(t, http.MethodGet, "/api/v1/users", token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("short password is rejected", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)

		w := app.request(t, http.MethodPost, "/api/v1/users", token, gin.H{
			"username": "jdoe",
			"password": "short",
			"role":     "ADMIN",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
