package delivery

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "thinkwrapper-backend/internal/auth/domain"
	"thinkwrapper-backend/internal/billing/domain"
	"thinkwrapper-backend/internal/billing/usecase"

	"github.com/gin-gonic/gin"
)

const testSecret = "whsec_test"

var errStorage = errors.New("storage down")

// stubBillingRepo implements repository.BillingRepository with fixed replies
type stubBillingRepo struct {
	seen map[string]bool
	err  error
}

func (s *stubBillingRepo) RecordEvent(e *domain.WebhookEvent) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[e.EventID] {
		return false, nil
	}
	s.seen[e.EventID] = true
	return true, nil
}

func (s *stubBillingRepo) DeleteEvent(eventID string) error {
	delete(s.seen, eventID)
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByExternalID(id string) (*domain.Subscription, error) {
	return nil, nil
}
func (s *stubBillingRepo) UpsertSubscription(sub *domain.Subscription) error { return nil }
func (s *stubBillingRepo) FindTransactionByExternalID(id string) (*domain.Transaction, error) {
	return nil, nil
}
func (s *stubBillingRepo) SaveTransaction(tx *domain.Transaction) error { return nil }

// stubUserRepo implements authrepo.UserRepository resolving no users
type stubUserRepo struct{}

func (stubUserRepo) Create(u *authdomain.User) error                       { return nil }
func (stubUserRepo) FindByEmail(e string) (*authdomain.User, error)        { return nil, nil }
func (stubUserRepo) FindByID(id string) (*authdomain.User, error)          { return nil, nil }
func (stubUserRepo) FindBySubscriptionID(s string) (*authdomain.User, error) {
	return nil, nil
}
func (stubUserRepo) Update(u *authdomain.User) error                           { return nil }
func (stubUserRepo) SaveRefreshToken(t *authdomain.RefreshToken) error         { return nil }
func (stubUserRepo) DeleteRefreshToken(t string) error                         { return nil }
func (stubUserRepo) FindRefreshToken(t string) (*authdomain.RefreshToken, error) { return nil, nil }

func newTestRouter(repo *stubBillingRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ingress := usecase.NewIngress(testSecret, repo, stubUserRepo{})
	handler := NewWebhookHandler(ingress)

	r := gin.New()
	r.POST("/api/webhooks/paddle", handler.HandlePaddle)
	return r
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paddle", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Paddle-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookStatusCodes(t *testing.T) {
	t.Parallel()

	valid := []byte(`{"event_id":"evt_1","event_type":"transaction.updated","data":{"id":"txn_1"}}`)

	t.Run("missing signature", func(t *testing.T) {
		w := postWebhook(newTestRouter(&stubBillingRepo{}), valid, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		w := postWebhook(newTestRouter(&stubBillingRepo{}), valid, "deadbeef")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		body := []byte(`{"event_type": "x"`)
		w := postWebhook(newTestRouter(&stubBillingRepo{}), body, sign(body))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("applied", func(t *testing.T) {
		w := postWebhook(newTestRouter(&stubBillingRepo{}), valid, sign(valid))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("duplicate still 200", func(t *testing.T) {
		r := newTestRouter(&stubBillingRepo{})
		postWebhook(r, valid, sign(valid))
		w := postWebhook(r, valid, sign(valid))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("storage fault", func(t *testing.T) {
		repo := &stubBillingRepo{err: errStorage}
		w := postWebhook(newTestRouter(repo), valid, sign(valid))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
	})
}
