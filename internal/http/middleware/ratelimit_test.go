package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithSubject(subject string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if subject == "" {
		return r
	}
	ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
	return r.WithContext(ctx)
}

func TestUserRateLimitLimitaPorSubject(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	handler := UserRateLimit(limiter)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSubject("user-a"))
	if rec.Code != http.StatusOK {
		t.Fatalf("primeiro pedido devia passar, status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSubject("user-a"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("segundo pedido devia ser limitado, status %d", rec.Code)
	}

	// Outro utilizador tem o seu próprio limiter.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSubject("user-b"))
	if rec.Code != http.StatusOK {
		t.Fatalf("subject diferente não devia ser limitado, status %d", rec.Code)
	}
}

func TestUserRateLimitIgnoraPedidosSemSubject(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	handler := UserRateLimit(limiter)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithSubject(""))
		if rec.Code != http.StatusOK {
			t.Fatalf("pedido sem subject não devia ser limitado, status %d", rec.Code)
		}
	}
}
