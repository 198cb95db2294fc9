package echoapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/services/metrics"
)

const (
	signatureHeader = "X-Billing-Signature"
	maxWebhookBody  = 64 << 10
)

type WebhookResponse struct {
	Applied      bool                      `json:"applied"`
	Subscription subscription.Subscription `json:"subscription"`
}

type billingApi struct {
	conf          *core.Config
	subscriptions *subscription.Service
	logger        core.Logger
	validate      *validator.Validate
}

func registerBillingAPI(
	g *echo.Group,
	conf *core.Config,
	subscriptions *subscription.Service,
	logger core.Logger,
	validate *validator.Validate,
) {
	api := billingApi{
		conf:          conf,
		subscriptions: subscriptions,
		logger:        logger,
		validate:      validate,
	}
	g.POST("/billing/webhook", api.webhook)
}

// Sign returns the hex HMAC-SHA256 of payload, as expected in the X-Billing-Signature header.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (api *billingApi) verify(payload []byte, signature string) bool {
	if api.conf.Billing.WebhookSecret == "" || signature == "" {
		return false
	}
	expected := Sign(api.conf.Billing.WebhookSecret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Handlers

// webhook applies a subscription status event. Redeliveries are acknowledged without effect.
func (api *billingApi) webhook(ctx echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		return errors.Wrap(err, "reading webhook body")
	}
	if !api.verify(payload, ctx.Request().Header.Get(signatureHeader)) {
		metrics.SubscriptionEvents.WithLabelValues("unknown", "rejected").Inc()
		api.logger.Warn("billing webhook with invalid signature", map[string]interface{}{"ip": ctx.RealIP()})
		return errInvalidSignature
	}

	var event subscription.StatusEvent
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event").SetInternal(err)
	}
	if err := api.validate.Struct(&event); err != nil {
		metrics.SubscriptionEvents.WithLabelValues(string(event.Status), "rejected").Inc()
		return err
	}

	sub, applied, err := api.subscriptions.ApplyStatus(ctx.Request().Context(), event.SchoolID, event.Status, event.EffectiveAt)
	if err != nil {
		return errors.Wrap(err, "applying subscription status")
	}

	outcome := "ignored"
	if applied {
		outcome = "applied"
	}
	metrics.SubscriptionEvents.WithLabelValues(string(event.Status), outcome).Inc()
	return ctx.JSON(http.StatusOK, WebhookResponse{Applied: applied, Subscription: sub})
}
