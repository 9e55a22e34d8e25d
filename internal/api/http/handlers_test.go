package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmos-desktop/sei-gateway/internal/api/middleware"
	"github.com/pmos-desktop/sei-gateway/internal/enrich"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/monitoring"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

type fakeEngine struct {
	challenge    *portal.Challenge
	listing      *portal.Listing
	detail       *portal.ProcessDetail
	err          error
	gotCreds     portal.Credentials
	gotChallenge *portal.Challenge
	gotDetail    portal.DetailRequest
}

func (f *fakeEngine) Challenge(context.Context) (*portal.Challenge, error) {
	return f.challenge, f.err
}

func (f *fakeEngine) Authenticate(_ context.Context, creds portal.Credentials, ch *portal.Challenge) (*portal.Listing, error) {
	f.gotCreds = creds
	f.gotChallenge = ch
	return f.listing, f.err
}

func (f *fakeEngine) Detail(_ context.Context, req portal.DetailRequest) (*portal.ProcessDetail, error) {
	f.gotDetail = req
	return f.detail, f.err
}

func setupRouter(engine portal.Engine, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.CORS(middleware.DefaultCORSConfig()))
	NewHandlers(engine, opts).Register(router)
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestChallenge(t *testing.T) {
	engine := &fakeEngine{challenge: &portal.Challenge{
		Cookies:      portal.Jar{"PHPSESSID": "abc"},
		HiddenFields: map[string]string{"hdnToken": "tok"},
		LoginURL:     "https://sei.example.gov.br/sip/login.php",
		CaptchaImage: []byte{0x89, 'P', 'N', 'G'},
		CaptchaMIME:  "image/png",
	}}
	router := setupRouter(engine, Options{})

	w := do(router, http.MethodGet, "/api/sei/auth/challenge", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "iVBORw==", body["captcha_image"])
	assert.Equal(t, "image/png", body["captcha_mime"])
	assert.Equal(t, map[string]any{"PHPSESSID": "abc"}, body["cookies"])
	assert.Equal(t, map[string]any{"hdnToken": "tok"}, body["hidden_fields"])
	assert.Equal(t, "https://sei.example.gov.br/sip/login.php", body["login_url"])
}

func TestChallengeWithoutCaptcha(t *testing.T) {
	engine := &fakeEngine{challenge: &portal.Challenge{LoginURL: "https://sei.example.gov.br/sip/login.php"}}
	router := setupRouter(engine, Options{})

	w := do(router, http.MethodGet, "/api/sei/auth/challenge", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Contains(t, body, "captcha_image")
	assert.Nil(t, body["captcha_image"])
	assert.Equal(t, map[string]any{}, body["cookies"])
	assert.Equal(t, map[string]any{}, body["hidden_fields"])
}

func TestProcesses(t *testing.T) {
	engine := &fakeEngine{listing: &portal.Listing{
		Session: portal.Session{Cookies: portal.Jar{"SEI_SESSION": "auth"}},
		Processes: []portal.Process{{
			Protocol:    "1500.01.0000001/2024-11",
			Description: "Pagamento urgente de fornecedor",
			Date:        "05/02/2024",
		}},
		Diagnostics: portal.Diagnostics{Format: portal.FormatAnchors, AnchorCount: 1},
	}}
	now := func() time.Time { return time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC) }
	router := setupRouter(engine, Options{Enricher: enrich.New(now)})

	w := do(router, http.MethodPost, "/api/sei/processos", `{
		"usuario": "joao.silva", "senha": "segredo", "orgao": "28", "captcha": "X7KQ",
		"cookies": {"PHPSESSID": "abc"}, "hidden_fields": {"hdnToken": "tok"},
		"login_url": "https://sei.example.gov.br/sip/login.php"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, portal.Credentials{Username: "joao.silva", Password: "segredo", OrgCode: "28", CaptchaAnswer: "X7KQ"}, engine.gotCreds)
	assert.Equal(t, portal.Jar{"PHPSESSID": "abc"}, engine.gotChallenge.Cookies)
	assert.Equal(t, "tok", engine.gotChallenge.HiddenFields["hdnToken"])
	assert.Equal(t, "https://sei.example.gov.br/sip/login.php", engine.gotChallenge.LoginURL)

	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, map[string]any{"SEI_SESSION": "auth"}, body["cookies"])
	assert.Equal(t, "anchors", body["debug"].(map[string]any)["format"])

	records := body["processos"].([]any)
	require.Len(t, records, 1)
	record := records[0].(map[string]any)
	assert.Equal(t, "1500.01.0000001/2024-11", record["protocolo"])
	assert.Equal(t, "high", record["prioridade"])
	assert.Equal(t, "Financial", record["categoria"])
	assert.Equal(t, float64(6), record["dias_decorridos"], "partial days round up")
	assert.Equal(t, "Pagamento urgente de fornecedor", record["resumo"])
	assert.Nil(t, record["prazo"])

	summary := body["resumo_geral"].(map[string]any)
	assert.Equal(t, float64(1), summary["total"])
	assert.Equal(t, float64(6), summary["idade_media"])
}

func TestProcessesRawWithoutEnricher(t *testing.T) {
	engine := &fakeEngine{listing: &portal.Listing{
		Diagnostics: portal.Diagnostics{Format: portal.FormatNone, Snippet: "Nenhum registro"},
	}}
	router := setupRouter(engine, Options{})

	w := do(router, http.MethodPost, "/api/sei/processos", `{"usuario":"joao.silva","senha":"segredo"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, []any{}, body["processos"])
	assert.Equal(t, float64(0), body["total"])
	assert.Equal(t, "Nenhum registro", body["debug"].(map[string]any)["snippet"])
	assert.NotContains(t, body, "resumo_geral")
}

func TestProcessesValidation(t *testing.T) {
	router := setupRouter(&fakeEngine{}, Options{})

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "malformed json", body: `{"usuario":`, wantErr: msgInvalidJSON},
		{name: "missing password", body: `{"usuario":"joao.silva"}`, wantErr: msgMissingIdentity},
		{name: "blank user", body: `{"usuario":"  ","senha":"x"}`, wantErr: msgMissingIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/sei/processos", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantErr, decode(t, w)["error"])
		})
	}
}

func TestProcessesErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "portal rejection verbatim",
			err:        &portal.AuthRejectedError{Message: "Código de confirmação inválido."},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Código de confirmação inválido.",
		},
		{
			name:       "redirect loop reads as rejection",
			err:        &portal.AuthRejectedError{Message: portal.GenericLoginFailure, Cause: portal.ErrRedirectLoop},
			wantStatus: http.StatusUnauthorized,
			wantError:  portal.GenericLoginFailure,
		},
		{
			name:       "transport failure",
			err:        &portal.TransportError{Op: "login", URL: "https://sei.example.gov.br", Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantError:  "portal login https://sei.example.gov.br: connection refused",
		},
		{
			name:       "timeout",
			err:        &portal.TransportError{Op: "login", URL: "https://sei.example.gov.br", Timeout: true, Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "encoding",
			err:        &portal.EncodingError{Charset: "x-mac-klingon", Err: errors.New("unsupported")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "anything else",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  msgProcessesFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&fakeEngine{err: tt.err}, Options{})

			w := do(router, http.MethodPost, "/api/sei/processos", `{"usuario":"joao.silva","senha":"x"}`)
			assert.Equal(t, tt.wantStatus, w.Code)

			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}

func TestDetails(t *testing.T) {
	engine := &fakeEngine{detail: &portal.ProcessDetail{
		Tree:    []portal.TreeNode{{Title: "Ofício 12", Link: "https://sei.example.gov.br/doc", Kind: portal.KindDocument}},
		History: nil,
	}}
	router := setupRouter(engine, Options{})

	w := do(router, http.MethodPost, "/api/sei/detalhes", `{
		"usuario": "joao.silva", "senha": "segredo", "orgao": "28",
		"link_sei": "https://sei.example.gov.br/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=1",
		"cookies": {"SEI_SESSION": "auth"}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "joao.silva", engine.gotDetail.Credentials.Username)
	assert.Equal(t, "28", engine.gotDetail.Credentials.OrgCode)
	assert.Empty(t, engine.gotDetail.Credentials.CaptchaAnswer)
	assert.Equal(t, portal.Jar{"SEI_SESSION": "auth"}, engine.gotDetail.Cookies)

	body := decode(t, w)
	assert.Equal(t, []any{map[string]any{
		"title": "Ofício 12",
		"link":  "https://sei.example.gov.br/doc",
		"type":  "document",
	}}, body["tree"])
	assert.Equal(t, []any{}, body["history"])
}

func TestDetailsRequiresLink(t *testing.T) {
	engine := &fakeEngine{}
	router := setupRouter(engine, Options{})

	w := do(router, http.MethodPost, "/api/sei/detalhes", `{"usuario":"joao.silva","senha":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Link do processo é obrigatório.", decode(t, w)["error"])
	assert.Empty(t, engine.gotDetail.Link, "engine not called")
}

func TestDetailsEngineMissingLink(t *testing.T) {
	router := setupRouter(&fakeEngine{err: portal.ErrMissingLink}, Options{})

	w := do(router, http.MethodPost, "/api/sei/detalhes", `{"link_sei":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgMissingLink, decode(t, w)["error"])
}

func TestPreflight(t *testing.T) {
	router := setupRouter(&fakeEngine{}, Options{})

	for _, path := range []string{"/api/sei/auth/challenge", "/api/sei/processos", "/api/sei/detalhes"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://painel.example.gov.br")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestHealthAndOperationMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	engine := &fakeEngine{err: &portal.AuthRejectedError{Message: "Senha inválida."}}
	router := setupRouter(engine, Options{Metrics: metrics, Strategy: portal.StrategyHTTP})

	w := do(router, http.MethodPost, "/api/sei/processos", `{"usuario":"joao.silva","senha":"x"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ServiceCalls.WithLabelValues("portal", "authenticate", "rejected")))

	w = do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "http", body["strategy"])
	assert.Equal(t, false, body["enrich"])
	assert.Contains(t, body, "metrics")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "rejected", outcome(&portal.AuthRejectedError{Message: "x"}))
	assert.Equal(t, "timeout", outcome(&portal.TransportError{Timeout: true, Err: context.DeadlineExceeded}))
	assert.Equal(t, "upstream_error", outcome(&portal.TransportError{Err: errors.New("reset")}))
	assert.Equal(t, "bad_request", outcome(portal.ErrMissingLink))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}
