package settings

import (
	"time"

	"github.com/google/uuid"
)

// Setting keys for the payment gateway.
const (
	KeyGatewayAPIKey = "payment.gateway_api_key"
	KeyWebhookSecret = "payment.webhook_secret"
	KeySuccessURL    = "payment.success_url"
	KeyCancelURL     = "payment.cancel_url"
)

var paymentKeys = []string{KeyGatewayAPIKey, KeyWebhookSecret, KeySuccessURL, KeyCancelURL}

var secretKeys = map[string]bool{
	KeyGatewayAPIKey: true,
	KeyWebhookSecret: true,
}

// Setting is one stored value. Secret values hold secretbox ciphertext.
type Setting struct {
	Key       string     `db:"key"`
	Value     string     `db:"value"`
	IsSecret  bool       `db:"is_secret"`
	UpdatedBy *uuid.UUID `db:"updated_by"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// PaymentSettings are the decrypted gateway credentials and redirect URLs.
type PaymentSettings struct {
	GatewayAPIKey string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func (p *PaymentSettings) get(key string) string {
	switch key {
	case KeyGatewayAPIKey:
		return p.GatewayAPIKey
	case KeyWebhookSecret:
		return p.WebhookSecret
	case KeySuccessURL:
		return p.SuccessURL
	case KeyCancelURL:
		return p.CancelURL
	}
	return ""
}

func (p *PaymentSettings) set(key, value string) {
	switch key {
	case KeyGatewayAPIKey:
		p.GatewayAPIKey = value
	case KeyWebhookSecret:
		p.WebhookSecret = value
	case KeySuccessURL:
		p.SuccessURL = value
	case KeyCancelURL:
		p.CancelURL = value
	}
}
