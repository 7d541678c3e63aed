package httpserver_test

import (
	"net/http"
	"testing"

	"labportal/internal/auth"
	"labportal/internal/httpserver"
	"labportal/internal/models"
	"labportal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	t       *testing.T
	db      *gorm.DB
	h       http.Handler
	manager string
	lab     string
	super   string
}

func newEnv(t *testing.T) *env {
	db := testutil.OpenDB(t)
	tokens := testutil.Tokens()
	e := &env{t: t, db: db, h: httpserver.NewRouter(db, testutil.Logger(), tokens)}
	e.manager = testutil.Token(t, db, tokens, testutil.SeedUser(t, db, "boss", auth.RoleManager))
	e.lab = testutil.Token(t, db, tokens, testutil.SeedUser(t, db, "alice", auth.RoleLabAssistant))
	e.super = testutil.Token(t, db, tokens, testutil.SeedUser(t, db, "sam", auth.RoleSupervisor))
	return e
}

func (e *env) do(method, path string, body interface{}, token string, wantCode int) map[string]any {
	e.t.Helper()
	w := testutil.DoRequest(e.h, method, path, body, token)
	require.Equal(e.t, wantCode, w.Code, "%s %s: %s", method, path, w.Body.String())
	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json" {
		testutil.Decode(e.t, w, &out)
	}
	return out
}

// catalogue creates a plant, a product and two parameters through the API.
func (e *env) catalogue() (productID, h2oID, colourID string) {
	plant := e.do(http.MethodPost, "/v1/plants", map[string]any{"name": "Plant A"}, e.manager, http.StatusCreated)
	product := e.do(http.MethodPost, "/v1/products", map[string]any{
		"product_id": "UREA-46", "name": "Urea", "plant": plant["id"],
	}, e.manager, http.StatusCreated)
	productID = product["id"].(string)
	h2o := e.do(http.MethodPost, "/v1/parameters", map[string]any{
		"product": productID, "name": "H2O", "type": "number", "unit": "%", "min_value": 0, "max_value": 5,
	}, e.manager, http.StatusCreated)
	colour := e.do(http.MethodPost, "/v1/parameters", map[string]any{
		"product": productID, "name": "Colour", "type": "dropdown", "required": false, "options": []string{"white", "off-white"},
	}, e.manager, http.StatusCreated)
	return productID, h2o["id"].(string), colour["id"].(string)
}

func TestLoginMeLogout(t *testing.T) {
	e := newEnv(t)

	e.do(http.MethodPost, "/v1/auth/login", map[string]any{"username": "alice", "password": "nope"}, "", http.StatusUnauthorized)
	res := e.do(http.MethodPost, "/v1/auth/login", map[string]any{"username": "Alice", "password": testutil.TestPassword}, "", http.StatusOK)
	tok := res["token"].(string)
	require.NotEmpty(t, tok)

	me := e.do(http.MethodGet, "/v1/me", nil, tok, http.StatusOK)
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, []any{auth.RoleLabAssistant}, me["roles"])

	e.do(http.MethodPost, "/v1/auth/logout", nil, tok, http.StatusOK)
	e.do(http.MethodGet, "/v1/me", nil, tok, http.StatusUnauthorized)
}

func TestReferenceDataRequiresManager(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodPost, "/v1/plants", map[string]any{"name": "X"}, e.lab, http.StatusForbidden)
	e.do(http.MethodPost, "/v1/plants", map[string]any{"name": " "}, e.manager, http.StatusBadRequest)

	productID, _, _ := e.catalogue()
	e.do(http.MethodPost, "/v1/plants", map[string]any{"name": "Plant A"}, e.manager, http.StatusConflict)

	w := testutil.DoRequest(e.h, http.MethodGet, "/v1/products/"+productID+"/parameters", nil, e.lab)
	require.Equal(t, http.StatusOK, w.Code)
	var params []models.ProductParameter
	testutil.Decode(t, w, &params)
	require.Len(t, params, 2)
	assert.Equal(t, "H2O", params[0].Name)
	assert.Equal(t, models.StringList{"white", "off-white"}, params[1].Options)

	bad := e.do(http.MethodPost, "/v1/parameters", map[string]any{
		"product": productID, "name": "Bad", "type": "number", "min_value": 5, "max_value": 1,
	}, e.manager, http.StatusBadRequest)
	assert.Contains(t, bad["fields"], "min_value")
}

func TestPlantRenameIsManagerOnly(t *testing.T) {
	e := newEnv(t)
	plant := e.do(http.MethodPost, "/v1/plants", map[string]any{"name": "Plant B"}, e.manager, http.StatusCreated)
	id := plant["id"].(string)

	e.do(http.MethodPatch, "/v1/plants/"+id, map[string]any{"name": "Plant C"}, e.lab, http.StatusForbidden)
	renamed := e.do(http.MethodPatch, "/v1/plants/"+id, map[string]any{"name": " Plant C "}, e.manager, http.StatusOK)
	assert.Equal(t, "Plant C", renamed["name"])
	e.do(http.MethodPatch, "/v1/plants/missing", map[string]any{"name": "X"}, e.manager, http.StatusNotFound)
}

func TestParameterPatchClearsExplicitNull(t *testing.T) {
	e := newEnv(t)
	_, h2oID, _ := e.catalogue()

	p := e.do(http.MethodPatch, "/v1/parameters/"+h2oID, map[string]any{"unit": nil, "max_value": nil}, e.manager, http.StatusOK)
	assert.Nil(t, p["unit"])
	assert.Nil(t, p["max_value"])
	assert.Equal(t, float64(0), p["min_value"])

	e.do(http.MethodPatch, "/v1/parameters/"+h2oID, map[string]any{"required": "yes"}, e.manager, http.StatusBadRequest)
	e.do(http.MethodPatch, "/v1/parameters/missing", map[string]any{"name": "x"}, e.manager, http.StatusNotFound)
}

func TestReportWorkflowOverHTTP(t *testing.T) {
	e := newEnv(t)
	productID, h2oID, colourID := e.catalogue()

	e.do(http.MethodPost, "/v1/lab-reports", map[string]any{"product": productID, "batch_no": "B-1"}, e.super, http.StatusForbidden)

	rejected := e.do(http.MethodPost, "/v1/lab-reports", map[string]any{
		"product": productID, "batch_no": "B-1",
		"parameter_values": []map[string]any{{"parameter": h2oID, "value": "9"}, {"parameter": colourID, "value": "pink"}},
	}, e.lab, http.StatusUnprocessableEntity)
	fields := rejected["fields"].(map[string]any)
	assert.Equal(t, "must be at most 5", fields["parameter_values["+h2oID+"]"])
	assert.Contains(t, fields["parameter_values["+colourID+"]"], "must be one of")

	e.do(http.MethodPost, "/v1/lab-reports", map[string]any{"product": "nope", "batch_no": "B-1"}, e.lab, http.StatusNotFound)
	e.do(http.MethodPost, "/v1/lab-reports", map[string]any{"product": productID}, e.lab, http.StatusBadRequest)

	created := e.do(http.MethodPost, "/v1/lab-reports", map[string]any{
		"product": productID, "batch_no": "B-1",
		"parameter_values": []map[string]any{{"parameter": h2oID, "value": "2.5"}},
	}, e.lab, http.StatusCreated)
	id := created["id"].(string)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "alice", created["submitted_by_username"])
	assert.Nil(t, created["approved_by"])

	e.do(http.MethodPatch, "/v1/lab-reports/"+id, map[string]any{"status": "approved"}, e.lab, http.StatusForbidden)
	e.do(http.MethodPatch, "/v1/lab-reports/"+id, map[string]any{"status": "done"}, e.super, http.StatusBadRequest)

	approved := e.do(http.MethodPatch, "/v1/lab-reports/"+id, map[string]any{"status": "approved", "approved_by": "someone-else"}, e.super, http.StatusOK)
	assert.Equal(t, "approved", approved["status"])
	assert.Equal(t, "sam", approved["approved_by_username"])
	assert.NotNil(t, approved["approved_at"])

	w := testutil.DoRequest(e.h, http.MethodGet, "/v1/lab-reports/"+id+"/history", nil, e.lab)
	require.Equal(t, http.StatusOK, w.Code)
	var history []map[string]any
	testutil.Decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "approved", history[1]["to_status"])

	list := e.do(http.MethodGet, "/v1/lab-reports?status=approved&product_id="+productID, nil, e.lab, http.StatusOK)
	assert.Equal(t, float64(1), list["count"])
	e.do(http.MethodGet, "/v1/lab-reports?page_size=x", nil, e.lab, http.StatusBadRequest)
	e.do(http.MethodGet, "/v1/lab-reports?page=9223372036854775807&page_size=10", nil, e.lab, http.StatusBadRequest)
	e.do(http.MethodGet, "/v1/lab-reports?status=bogus", nil, e.lab, http.StatusBadRequest)

	summary := e.do(http.MethodGet, "/v1/lab-reports/summary", nil, e.lab, http.StatusOK)
	assert.Equal(t, float64(1), summary["approved"])
	assert.Equal(t, float64(1), summary["total"])

	x := testutil.DoRequest(e.h, http.MethodGet, "/v1/lab-reports/export?status=approved", nil, e.lab)
	require.Equal(t, http.StatusOK, x.Code)
	assert.Contains(t, x.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, x.Body.Len())

	logs := testutil.DoRequest(e.h, http.MethodGet, "/v1/logs", nil, e.lab)
	require.Equal(t, http.StatusOK, logs.Code)
	var entries []models.AuditLog
	testutil.Decode(t, logs, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "REPORT_CREATE", entries[0].Action)

	e.do(http.MethodDelete, "/v1/lab-reports/"+id, nil, e.super, http.StatusForbidden)
	e.do(http.MethodDelete, "/v1/lab-reports/"+id, nil, e.manager, http.StatusNoContent)
	e.do(http.MethodGet, "/v1/lab-reports/"+id, nil, e.lab, http.StatusNotFound)
}

func TestUserAdministration(t *testing.T) {
	e := newEnv(t)

	e.do(http.MethodGet, "/v1/admin/users", nil, e.lab, http.StatusForbidden)
	e.do(http.MethodPost, "/v1/admin/users", map[string]any{"username": "x", "password": "long-enough", "roles": []string{"root"}}, e.manager, http.StatusBadRequest)

	u := e.do(http.MethodPost, "/v1/admin/users", map[string]any{"username": "Dana", "password": "long-enough", "roles": []string{auth.RoleSupervisor}}, e.manager, http.StatusCreated)
	assert.Equal(t, "dana", u["username"])
	e.do(http.MethodPost, "/v1/admin/users", map[string]any{"username": "dana", "password": "long-enough"}, e.manager, http.StatusConflict)

	login := e.do(http.MethodPost, "/v1/auth/login", map[string]any{"username": "dana", "password": "long-enough"}, "", http.StatusOK)
	tok := login["token"].(string)
	e.do(http.MethodGet, "/v1/me", nil, tok, http.StatusOK)

	id := u["id"].(string)
	disabled := e.do(http.MethodPatch, "/v1/admin/users/"+id, map[string]any{"is_active": false}, e.manager, http.StatusOK)
	assert.Equal(t, false, disabled["is_active"])
	e.do(http.MethodGet, "/v1/me", nil, tok, http.StatusUnauthorized)
	e.do(http.MethodPost, "/v1/auth/login", map[string]any{"username": "dana", "password": "long-enough"}, "", http.StatusUnauthorized)

	e.do(http.MethodDelete, "/v1/admin/users/"+id, nil, e.manager, http.StatusOK)
	e.do(http.MethodDelete, "/v1/admin/users/"+id, nil, e.manager, http.StatusNotFound)
}
