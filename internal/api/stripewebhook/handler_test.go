package stripewebhooks

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"

	"membergate/internal/app/activation"
	"membergate/internal/domain/billing"
	"membergate/internal/domain/plans"
	"membergate/internal/domain/users"
	"membergate/internal/infra/accountlock"
	"membergate/internal/infra/identity"
)

const secret = "whsec_test"

var now = time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)

type fixture struct {
	router *gin.Engine
	store  *identity.Memory
	ledger *billing.MemoryLedger
}

func setup(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := identity.NewMemory()
	catalog := plans.DefaultCatalog()
	catalog.Lookup = func(env string) string { return "price_" + env }
	ledger := billing.NewMemoryLedger()
	svc := activation.New(store, accountlock.NewMemory(), catalog, ledger)
	svc.Now = func() time.Time { return now }

	h := New(svc, ledger, "sk_test", secret)
	r := gin.New()
	r.POST("/stripe/webhook", h.StripeWebhook)
	return fixture{router: r, store: store, ledger: ledger}
}

func event(id, typ, session string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2020-08-27","data":{"object":%s}}`, id, typ, session)
}

func send(r *gin.Engine, payload, signingSecret string) *httptest.ResponseRecorder {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, []byte(payload), signingSecret)
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const paidSession = `{"id":"cs_1","object":"checkout.session","metadata":{"email":"A@example.com","plan_key":"month"},"payment_intent":"pi_1","payment_status":"paid","amount_total":1500,"currency":"pln"}`

func seedMember(store *identity.Memory) {
	store.Put(users.User{ID: "u1", Email: "a@example.com", AppMetadata: map[string]any{"roles": []any{"member"}}})
}

func TestStripeWebhook_Configuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/stripe/webhook", New(nil, nil, "", secret).StripeWebhook)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	r = gin.New()
	r.POST("/stripe/webhook", New(nil, nil, "sk_test", "").StripeWebhook)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStripeWebhook_SignatureErrors(t *testing.T) {
	f := setup(t)
	seedMember(f.store)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(f.router, event("evt_1", "checkout.session.completed", paidSession), "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	u, err := f.store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, u.Roles())
}

func TestStripeWebhook_CompletedActivates(t *testing.T) {
	f := setup(t)
	seedMember(f.store)

	w := send(f.router, event("evt_1", "checkout.session.completed", paidSession), secret)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := f.store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"member", "active"}, u.Roles())
	assert.Equal(t, "2024-03-20T10:00:00.000Z", u.Subscription()["expires_at"])
	assert.Equal(t, "cs_1", u.Subscription()["last_session_id"])

	require.Len(t, f.ledger.Payments, 1)
	assert.Equal(t, int64(1500), f.ledger.Payments[0].AmountTotal)
	assert.Equal(t, "paid", f.ledger.Payments[0].Status)
}

func TestStripeWebhook_ReplayIsAcknowledgedOnce(t *testing.T) {
	f := setup(t)
	seedMember(f.store)
	payload := event("evt_1", "checkout.session.completed", paidSession)

	require.Equal(t, http.StatusOK, send(f.router, payload, secret).Code)
	w := send(f.router, payload, secret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")

	u, err := f.store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20T10:00:00.000Z", u.Subscription()["expires_at"])
}

func TestStripeWebhook_AsyncPaymentActivates(t *testing.T) {
	f := setup(t)
	seedMember(f.store)

	w := send(f.router, event("evt_2", "checkout.session.async_payment_succeeded", paidSession), secret)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := f.store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "active", u.Status())
}

func TestStripeWebhook_UnknownAccountAcknowledged(t *testing.T) {
	f := setup(t)

	w := send(f.router, event("evt_3", "checkout.session.completed", paidSession), secret)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.ledger.Payments)
}

func TestStripeWebhook_MissingMetadataAcknowledged(t *testing.T) {
	f := setup(t)
	seedMember(f.store)

	w := send(f.router, event("evt_4", "checkout.session.completed", `{"id":"cs_2","object":"checkout.session","customer_email":"a@example.com"}`), secret)

	assert.Equal(t, http.StatusOK, w.Code)
	u, err := f.store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "", u.Status())
}

func TestStripeWebhook_PlanErrorRetries(t *testing.T) {
	f := setup(t)
	seedMember(f.store)
	payload := event("evt_5", "checkout.session.completed", `{"id":"cs_3","object":"checkout.session","metadata":{"email":"a@example.com","plan_key":"decade"}}`)

	w := send(f.router, payload, secret)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// The event id was forgotten, so a retry is processed again.
	first, err := f.ledger.MarkProcessed(context.Background(), "evt_5", "checkout.session.completed")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestStripeWebhook_Expired(t *testing.T) {
	f := setup(t)
	f.store.Put(users.User{ID: "u1", Email: "a@example.com",
		AppMetadata: map[string]any{"roles": []any{"member", "active"}, "status": "active"},
		UserMetadata: map[string]any{"status": "active", "subscription": map[string]any{
			"status": "active", "last_session_id": "cs_1", "expires_at": "2024-03-20T10:00:00.000Z",
		}},
	})

	other := `{"id":"cs_other","object":"checkout.session","customer_email":"a@example.com"}`
	require.Equal(t, http.StatusOK, send(f.router, event("evt_6", "checkout.session.expired", other), secret).Code)
	u, _ := f.store.GetByID(context.Background(), "u1")
	assert.Equal(t, "active", u.Status())

	same := `{"id":"cs_1","object":"checkout.session","customer_email":"a@example.com"}`
	require.Equal(t, http.StatusOK, send(f.router, event("evt_7", "checkout.session.expired", same), secret).Code)
	u, _ = f.store.GetByID(context.Background(), "u1")
	assert.Equal(t, "inactive", u.Status())
	assert.Equal(t, []string{"member"}, u.Roles())
	assert.Equal(t, "inactive", u.Subscription()["status"])
}

func TestStripeWebhook_OtherEventsIgnored(t *testing.T) {
	f := setup(t)

	w := send(f.router, event("evt_8", "invoice.paid", `{"id":"in_1","object":"invoice"}`), secret)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}
