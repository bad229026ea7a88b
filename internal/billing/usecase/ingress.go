package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	authdomain "thinkwrapper-backend/internal/auth/domain"
	authrepo "thinkwrapper-backend/internal/auth/repository"
	"thinkwrapper-backend/internal/billing/domain"
	"thinkwrapper-backend/internal/billing/repository"
)

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrMalformed    = errors.New("malformed webhook payload")
)

// Outcome is the result of ingesting one webhook event
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnhandled Outcome = "unhandled"
)

type eventEnvelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       eventData `json:"data"`
}

type eventData struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	CustomerID     string         `json:"customer_id"`
	SubscriptionID string         `json:"subscription_id"`
	CurrencyCode   string         `json:"currency_code"`
	BilledAt       *time.Time     `json:"billed_at"`
	CancelledAt    *time.Time     `json:"cancelled_at"`
	CustomData     map[string]any `json:"custom_data"`
	Details        struct {
		Totals struct {
			Total string `json:"total"`
		} `json:"totals"`
	} `json:"details"`
}

// userID returns the user ID the checkout session attached as custom data
func (d *eventData) userID() string {
	if d.CustomData == nil {
		return ""
	}
	if id, ok := d.CustomData["user_id"].(string); ok {
		return id
	}
	return ""
}

type eventHandler func(env *eventEnvelope) error

// Ingress verifies and applies billing provider webhooks
type Ingress struct {
	secret      []byte
	billingRepo repository.BillingRepository
	userRepo    authrepo.UserRepository
	handlers    map[string]eventHandler
}

// NewIngress creates a new Ingress. An empty secret disables ingestion:
// every request is rejected rather than accepted unverified.
func NewIngress(secret string, billingRepo repository.BillingRepository, userRepo authrepo.UserRepository) *Ingress {
	i := &Ingress{
		secret:      []byte(secret),
		billingRepo: billingRepo,
		userRepo:    userRepo,
	}
	i.handlers = map[string]eventHandler{
		"transaction.completed":  i.handleTransactionCompleted,
		"transaction.updated":    i.handleTransactionUpdated,
		"subscription.created":   i.handleSubscriptionCreated,
		"subscription.updated":   i.handleSubscriptionUpdated,
		"subscription.cancelled": i.handleSubscriptionCancelled,
		"subscription.past_due":  i.handleSubscriptionPastDue,
	}
	return i
}

// VerifySignature checks the HMAC-SHA256 hex digest of the raw body against
// the signature header. Constant-time comparison; the expected digest is
// never logged.
func (i *Ingress) VerifySignature(rawBody []byte, signature string) bool {
	if len(i.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Ingest verifies, deduplicates and applies one webhook delivery. The raw
// body is hashed before any parsing, so only authenticated payloads reach
// the JSON decoder.
func (i *Ingress) Ingest(rawBody []byte, signature string) (Outcome, error) {
	if !i.VerifySignature(rawBody, signature) {
		return "", ErrBadSignature
	}

	var env eventEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return "", ErrMalformed
	}
	if env.EventID == "" || env.EventType == "" {
		return "", ErrMalformed
	}

	created, err := i.billingRepo.RecordEvent(&domain.WebhookEvent{
		EventID:    env.EventID,
		EventType:  env.EventType,
		OccurredAt: env.OccurredAt,
		Payload:    string(rawBody),
	})
	if err != nil {
		return "", err
	}
	if !created {
		log.Printf("[Billing] Duplicate event %s (%s), skipping", env.EventID, env.EventType)
		return OutcomeDuplicate, nil
	}

	handler, ok := i.handlers[env.EventType]
	if !ok {
		log.Printf("[Billing] Unhandled event type: %s", env.EventType)
		return OutcomeUnhandled, nil
	}

	// The dedup row only counts once the handler applied the event. On a
	// handler fault the row is rolled back so the provider's redelivery is
	// processed rather than dropped as a duplicate.
	if err := handler(&env); err != nil {
		if derr := i.billingRepo.DeleteEvent(env.EventID); derr != nil {
			log.Printf("[Billing] Failed to roll back event %s after apply failure: %v", env.EventID, derr)
		}
		return "", err
	}
	log.Printf("[Billing] Applied event %s (%s)", env.EventID, env.EventType)
	return OutcomeApplied, nil
}

func (i *Ingress) handleTransactionCompleted(env *eventEnvelope) error {
	d := &env.Data

	billedAt := env.OccurredAt
	if d.BilledAt != nil {
		billedAt = *d.BilledAt
	}

	user, err := i.resolveUser(d, d.SubscriptionID)
	if err != nil {
		return err
	}

	tx := &domain.Transaction{
		ExternalID:     d.ID,
		SubscriptionID: d.SubscriptionID,
		CustomerID:     d.CustomerID,
		Status:         "completed",
		Amount:         d.Details.Totals.Total,
		Currency:       d.CurrencyCode,
		BilledAt:       billedAt,
	}
	if user != nil {
		tx.UserID = user.ID
	}
	if err := i.billingRepo.SaveTransaction(tx); err != nil {
		return err
	}

	// A completed payment restores access regardless of what dunning state
	// the user was in
	if user != nil {
		return i.setUserSubscription(user, d.SubscriptionID, authdomain.SubscriptionActive)
	}
	log.Printf("[Billing] Transaction %s has no resolvable user", d.ID)
	return nil
}

func (i *Ingress) handleTransactionUpdated(env *eventEnvelope) error {
	d := &env.Data

	user, err := i.resolveUser(d, d.SubscriptionID)
	if err != nil {
		return err
	}

	tx := &domain.Transaction{
		ExternalID:     d.ID,
		SubscriptionID: d.SubscriptionID,
		CustomerID:     d.CustomerID,
		Status:         d.Status,
		Amount:         d.Details.Totals.Total,
		Currency:       d.CurrencyCode,
	}
	if user != nil {
		tx.UserID = user.ID
	}
	return i.billingRepo.SaveTransaction(tx)
}

func (i *Ingress) handleSubscriptionCreated(env *eventEnvelope) error {
	status, ok := mapSubscriptionStatus(env.Data.Status)
	if !ok {
		log.Printf("[Billing] Unknown subscription status %q on %s, leaving user state unchanged", env.Data.Status, env.Data.ID)
		return nil
	}
	return i.applySubscriptionState(env, status)
}

func (i *Ingress) handleSubscriptionUpdated(env *eventEnvelope) error {
	status, ok := mapSubscriptionStatus(env.Data.Status)
	if !ok {
		log.Printf("[Billing] Unknown subscription status %q on %s, leaving user state unchanged", env.Data.Status, env.Data.ID)
		return nil
	}
	return i.applySubscriptionState(env, status)
}

func (i *Ingress) handleSubscriptionCancelled(env *eventEnvelope) error {
	if env.Data.CancelledAt == nil {
		t := env.OccurredAt
		env.Data.CancelledAt = &t
	}
	return i.applySubscriptionState(env, authdomain.SubscriptionCancelled)
}

func (i *Ingress) handleSubscriptionPastDue(env *eventEnvelope) error {
	return i.applySubscriptionState(env, authdomain.SubscriptionPastDue)
}

// applySubscriptionState upserts the subscription record and moves the
// owning user to the given status. Events for subscriptions that never map
// to a known user are recorded but otherwise dropped.
func (i *Ingress) applySubscriptionState(env *eventEnvelope, status authdomain.SubscriptionStatus) error {
	d := &env.Data

	user, err := i.resolveUser(d, d.ID)
	if err != nil {
		return err
	}

	sub := &domain.Subscription{
		ExternalID:  d.ID,
		CustomerID:  d.CustomerID,
		Status:      string(status),
		CancelledAt: d.CancelledAt,
	}
	if user != nil {
		sub.UserID = user.ID
	}
	if err := i.billingRepo.UpsertSubscription(sub); err != nil {
		return err
	}

	if user == nil {
		log.Printf("[Billing] Subscription %s has no resolvable user", d.ID)
		return nil
	}
	return i.setUserSubscription(user, d.ID, status)
}

// resolveUser finds the affected user, preferring the user_id custom data
// the checkout session carried, falling back to the subscription link.
func (i *Ingress) resolveUser(d *eventData, subscriptionID string) (*authdomain.User, error) {
	if id := d.userID(); id != "" {
		user, err := i.userRepo.FindByID(id)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	if subscriptionID == "" {
		return nil, nil
	}
	return i.userRepo.FindBySubscriptionID(subscriptionID)
}

func (i *Ingress) setUserSubscription(user *authdomain.User, subscriptionID string, status authdomain.SubscriptionStatus) error {
	if subscriptionID != "" {
		user.SubscriptionID = subscriptionID
	}
	user.SubscriptionStatus = status
	return i.userRepo.Update(user)
}

// mapSubscriptionStatus normalizes provider statuses onto the user model.
// An unrecognized status returns ok=false so the caller keeps the user's
// current state instead of downgrading on a status the code predates.
func mapSubscriptionStatus(providerStatus string) (authdomain.SubscriptionStatus, bool) {
	switch providerStatus {
	case "active", "trialing":
		return authdomain.SubscriptionActive, true
	case "past_due":
		return authdomain.SubscriptionPastDue, true
	case "canceled", "cancelled", "paused":
		return authdomain.SubscriptionCancelled, true
	default:
		return authdomain.SubscriptionNone, false
	}
}
