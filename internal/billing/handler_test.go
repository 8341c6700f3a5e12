package billing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupRouter(svc *Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set("userId", userID)
			c.Next()
		})
	}
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postWebhook(r http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	r := setupRouter(svc, "")
	body, header := signed(checkoutEvent("evt_1", "cus_1", "sub_1", "user-1"))

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"no signature", "", http.StatusBadRequest},
		{"bad signature", "t=1,v1=00", http.StatusBadRequest},
		{"valid", header, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(r, body, tt.signature)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if tt.want == http.StatusOK && !strings.Contains(w.Body.String(), `"received":true`) {
				t.Fatalf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestMeHandlerReportsPlan(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	body, header := signed(checkoutEvent("evt_1", "cus_1", "sub_1", "user-1"))
	if _, err := svc.HandleWebhook(t.Context(), body, header); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	w := httptest.NewRecorder()
	setupRouter(svc, "user-1").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["userId"] != "user-1" || resp["plan"] != "pro" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestMeHandlerRequiresIdentity(t *testing.T) {
	w := httptest.NewRecorder()
	setupRouter(newTestService(NewMemoryRepo()), "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
