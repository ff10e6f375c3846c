package paygate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Paygate-Signature"

// Event types that confirm a payment. Every one of them settles the same way.
const (
	EventCheckoutCompleted = "checkout.completed"
	EventPaymentSucceeded  = "payment.succeeded"
)

// IsPaymentConfirmed reports whether eventType confirms a payment.
func IsPaymentConfirmed(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventPaymentSucceeded:
		return true
	}
	return false
}

// VerifySignature validates the hex HMAC-SHA256 signature of payload in
// constant time. An empty secret or signature never verifies.
func VerifySignature(payload []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if secret == "" || signature == "" {
		return false
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(given, mac.Sum(nil))
}

// Sign computes the signature the gateway would send for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is the webhook envelope.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ParseEvent decodes an envelope. Call only after the signature verified.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook envelope has no type")
	}
	return &event, nil
}

// PaymentData is the object carried by payment-confirming events. For
// checkout.completed the object is the session itself; for
// payment.succeeded it is the payment and references its session.
type PaymentData struct {
	ID                string            `json:"id"`
	CheckoutSessionID string            `json:"checkout_session_id,omitempty"`
	PaymentID         string            `json:"payment_id,omitempty"`
	AmountTotal       int64             `json:"amount_total,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Payment decodes the event data as a payment object.
func (e *Event) Payment() (*PaymentData, error) {
	var data PaymentData
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("event %s has no data", e.ID)
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("decode event %s data: %w", e.ID, err)
	}
	return &data, nil
}

// SessionID returns the checkout session the event refers to.
func (e *Event) SessionID(data *PaymentData) string {
	if data.CheckoutSessionID != "" {
		return data.CheckoutSessionID
	}
	if e.Type == EventCheckoutCompleted {
		return data.ID
	}
	return ""
}

// PaymentRef returns the gateway payment id the event refers to.
func (e *Event) PaymentRef(data *PaymentData) string {
	if data.PaymentID != "" {
		return data.PaymentID
	}
	if e.Type == EventPaymentSucceeded {
		return data.ID
	}
	return ""
}

// TransactionID returns the transactionId metadata set at checkout creation.
func (d *PaymentData) TransactionID() string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata["transactionId"]
}
