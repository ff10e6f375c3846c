package settings

import "time"

// UpdatePaymentRequest for PATCH /admin/settings/payment. Omitted fields are
// kept; an empty string clears the stored value so the environment default
// applies again.
type UpdatePaymentRequest struct {
	GatewayAPIKey *string `json:"gateway_api_key,omitempty" validate:"omitempty,max=512"`
	WebhookSecret *string `json:"webhook_secret,omitempty" validate:"omitempty,max=512"`
	SuccessURL    *string `json:"success_url,omitempty" validate:"omitempty,url,max=2048"`
	CancelURL     *string `json:"cancel_url,omitempty" validate:"omitempty,url,max=2048"`
}

func (r *UpdatePaymentRequest) values() map[string]*string {
	return map[string]*string{
		KeyGatewayAPIKey: r.GatewayAPIKey,
		KeyWebhookSecret: r.WebhookSecret,
		KeySuccessURL:    r.SuccessURL,
		KeyCancelURL:     r.CancelURL,
	}
}

// FieldView describes one setting without revealing secrets.
type FieldView struct {
	Value      string     `json:"value,omitempty"`
	Configured bool       `json:"configured"`
	Source     string     `json:"source,omitempty"` // database | environment
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// PaymentSettingsView is what admins see.
type PaymentSettingsView struct {
	GatewayAPIKey FieldView `json:"gateway_api_key"`
	WebhookSecret FieldView `json:"webhook_secret"`
	SuccessURL    FieldView `json:"success_url"`
	CancelURL     FieldView `json:"cancel_url"`
}

func (v *PaymentSettingsView) set(key string, f FieldView) {
	switch key {
	case KeyGatewayAPIKey:
		v.GatewayAPIKey = f
	case KeyWebhookSecret:
		v.WebhookSecret = f
	case KeySuccessURL:
		v.SuccessURL = f
	case KeyCancelURL:
		v.CancelURL = f
	}
}

// mask keeps the last four characters of long secrets.
func mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
