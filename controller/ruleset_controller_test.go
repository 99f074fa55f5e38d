// api/controller/ruleset_controller_test.go
package controller_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/aegis-governance/aegis/api/controller"
	"github.com/aegis-governance/aegis/api/policy"
)

func TestRuleSetController(t *testing.T) {
	store := policy.NewStore()
	rulesetController := controller.NewRuleSetController(store)

	router := gin.New()
	api := router.Group("/", asPrincipal("admin-1", "governance-admin"))
	rulesetController.RegisterRoutes(api)

	t.Run("GetActive_NoneLoaded", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/rulesets/active", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Activate_InvalidDocument", func(t *testing.T) {
		body := strings.NewReader("version: broken\nrules: []\n")
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/rulesets/activate", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "", store.ActiveVersion())
	})

	t.Run("Activate_EmptyBody", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/rulesets/activate", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
