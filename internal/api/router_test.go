package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vat-gateway/internal/registration"
	"github.com/sells-group/vat-gateway/internal/vat"
	"github.com/sells-group/vat-gateway/pkg/shopify"
)

type stubVerifier struct {
	result vat.Result
	err    error
	calls  []string
}

func (s *stubVerifier) Verify(_ context.Context, raw string) (vat.Result, error) {
	s.calls = append(s.calls, raw)
	return s.result, s.err
}

type stubRegistrar struct {
	check    registration.EmailCheck
	checkErr error
	outcome  *registration.Outcome
	regErr   error
	gotReq   registration.Request
}

func (s *stubRegistrar) EmailExists(_ context.Context, _ string) (registration.EmailCheck, error) {
	return s.check, s.checkErr
}

func (s *stubRegistrar) Register(_ context.Context, req registration.Request) (*registration.Outcome, error) {
	s.gotReq = req
	return s.outcome, s.regErr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func strPtr(s string) *string { return &s }

func TestHealth(t *testing.T) {
	h := NewRouter(Deps{})

	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := vat.NewMetrics(reg)
	m.ObserveVerification("primary", 150*time.Millisecond)

	h := NewRouter(Deps{Gatherer: reg})
	rec := do(t, h, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vatgw_verifications_total{source="primary"} 1`)
}

func TestMetricsNotMountedWithoutGatherer(t *testing.T) {
	rec := do(t, NewRouter(Deps{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateVAT_OK(t *testing.T) {
	v := &stubVerifier{result: vat.Result{Valid: true, Name: strPtr("ACME GmbH"), Source: vat.SourcePrimary}}
	h := NewRouter(Deps{Verifier: v})

	rec := do(t, h, http.MethodPost, "/api/validate-vat", `{"vat_number":"DE123456789"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "ACME GmbH", body["name"])
	assert.Contains(t, body, "address")
	assert.Nil(t, body["address"])
	assert.Equal(t, "primary", body["source"])
	assert.Equal(t, []string{"DE123456789"}, v.calls)
}

func TestValidateVAT_FailOpenDefault(t *testing.T) {
	v := &stubVerifier{result: vat.Result{Valid: true, Source: vat.SourceUnverified}}
	h := NewRouter(Deps{Verifier: v})

	rec := do(t, h, http.MethodPost, "/api/validate-vat", `{"vat_number":"FR12345"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true,"name":null,"address":null,"source":"unverified-default"}`, rec.Body.String())
}

func TestValidateVAT_InvalidIdentifier(t *testing.T) {
	v := &stubVerifier{err: vat.ErrInvalidIdentifier}
	h := NewRouter(Deps{Verifier: v})

	rec := do(t, h, http.MethodPost, "/api/validate-vat", `{"vat_number":"XX"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_identifier"}`, rec.Body.String())
}

func TestValidateVAT_Unverifiable(t *testing.T) {
	h := NewRouter(Deps{Verifier: &stubVerifier{err: vat.ErrUnverifiable}})

	rec := do(t, h, http.MethodPost, "/api/validate-vat", `{"vat_number":"DE123456789"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "vat_unverifiable", decodeBody(t, rec)["error"])
}

func TestValidateVAT_MalformedBody(t *testing.T) {
	v := &stubVerifier{}
	h := NewRouter(Deps{Verifier: v})

	rec := do(t, h, http.MethodPost, "/api/validate-vat", `{"vat_number":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
	assert.Empty(t, v.calls)
}

func TestValidateVAT_OversizedBody(t *testing.T) {
	v := &stubVerifier{}
	h := NewRouter(Deps{Verifier: v})

	body := `{"vat_number":"` + strings.Repeat("1", maxBodyBytes) + `"}`
	rec := do(t, h, http.MethodPost, "/api/validate-vat", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, v.calls)
}

func TestValidateVAT_WrongMethod(t *testing.T) {
	h := NewRouter(Deps{Verifier: &stubVerifier{}})

	rec := do(t, h, http.MethodGet, "/api/validate-vat", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", decodeBody(t, rec)["error"])
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Deps{Verifier: &stubVerifier{}, AllowedOrigins: []string{"https://shop.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/validate-vat", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	h := NewRouter(Deps{Verifier: &stubVerifier{}, AllowedOrigins: []string{"https://shop.example"}})

	req := httptest.NewRequest(http.MethodPost, "/api/validate-vat", strings.NewReader(`{"vat_number":"DE1"}`))
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	h := NewRouter(Deps{Verifier: panicVerifier{}})

	rec := do(t, h, http.MethodPost, "/api/validate-vat", `{"vat_number":"DE123456789"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicVerifier struct{}

func (panicVerifier) Verify(context.Context, string) (vat.Result, error) {
	panic("boom")
}

func TestCheckEmail(t *testing.T) {
	r := &stubRegistrar{check: registration.EmailCheck{Exists: true, Checked: true}}
	h := NewRouter(Deps{Registrar: r})

	rec := do(t, h, http.MethodPost, "/check-email", `{"email":"jane@acme.eu"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":true,"checked":true}`, rec.Body.String())
}

func TestCheckEmail_Degraded(t *testing.T) {
	h := NewRouter(Deps{Registrar: &stubRegistrar{}})

	rec := do(t, h, http.MethodPost, "/check-email", `{"email":"jane@acme.eu"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":false,"checked":false}`, rec.Body.String())
}

func TestCheckEmail_Invalid(t *testing.T) {
	r := &stubRegistrar{checkErr: &registration.ValidationError{Message: "email is required"}}
	h := NewRouter(Deps{Registrar: r})

	rec := do(t, h, http.MethodPost, "/check-email", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_email", decodeBody(t, rec)["error"])
}

func TestRegistrationRoutesNotMountedWithoutRegistrar(t *testing.T) {
	h := NewRouter(Deps{Verifier: &stubVerifier{}})

	rec := do(t, h, http.MethodPost, "/check-email", `{"email":"jane@acme.eu"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterCustomer_Created(t *testing.T) {
	r := &stubRegistrar{outcome: &registration.Outcome{
		Customer: &shopify.Customer{ID: 7, Email: "jane@acme.eu"},
		Created:  true,
	}}
	h := NewRouter(Deps{Registrar: r})

	rec := do(t, h, http.MethodPost, "/api/register-customer",
		`{"first_name":"Jane","last_name":"Doe","email":"jane@acme.eu","vat_number":"DE123456789","country":"Germany"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"customer_id":7,"email":"jane@acme.eu","created":true}`, rec.Body.String())
	assert.Equal(t, "Jane", r.gotReq.FirstName)
	assert.Equal(t, "DE123456789", r.gotReq.VATNumber)
	assert.Equal(t, "Germany", r.gotReq.Country)
}

func TestRegisterCustomer_Existing(t *testing.T) {
	r := &stubRegistrar{outcome: &registration.Outcome{Customer: &shopify.Customer{ID: 42, Email: "jane@acme.eu"}}}
	h := NewRouter(Deps{Registrar: r})

	rec := do(t, h, http.MethodPost, "/api/register-customer", `{"first_name":"Jane","email":"jane@acme.eu"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["created"])
}

func TestRegisterCustomer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &registration.ValidationError{Message: "email is required"}, http.StatusBadRequest, "invalid_request"},
		{"platform", &registration.PlatformError{Op: "create customer", Err: &shopify.APIError{StatusCode: 500}}, http.StatusBadGateway, "platform_error"},
		{"unexpected", context.Canceled, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Deps{Registrar: &stubRegistrar{regErr: tt.err}})

			rec := do(t, h, http.MethodPost, "/api/register-customer", `{"email":"jane@acme.eu"}`)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.code, body["error"])
			if tt.name == "validation" {
				assert.Equal(t, "email is required", body["message"])
			}
		})
	}
}
