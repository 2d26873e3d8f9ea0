package echoapi

import (
	"crypto/subtle"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core/billing"
)

const webhookTokenHeader = "asaas-access-token"

type (
	// WebhookRequest is the payment notification body posted by the gateway.
	WebhookRequest struct {
		Event   string `json:"event"`
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
	}

	WebhookResponse struct {
		Received bool            `json:"received"`
		Outcome  billing.Outcome `json:"outcome,omitempty"`
		Error    string          `json:"error,omitempty"`
	}
)

// webhook acknowledges every event it could record, matched or not, so the gateway stops redelivering.
// Only unreadable bodies and storage failures answer 500.
func (api *billingApi) webhook(ctx echo.Context) error {
	if token := api.conf.Gateway.WebhookToken; token != "" {
		got := ctx.Request().Header.Get(webhookTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return errInvalidWebhookToken
		}
	}

	body, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		api.logger.Error("reading gateway webhook body", errors.Wrap(err, "reading body"))
		return ctx.JSON(http.StatusInternalServerError, WebhookResponse{Error: "unreadable body"})
	}

	var data WebhookRequest
	if err = json.Unmarshal(body, &data); err != nil {
		api.logger.Error("malformed gateway webhook", errors.Wrap(err, "decoding body"), map[string]interface{}{
			"body": string(body),
		})
		return ctx.JSON(http.StatusInternalServerError, WebhookResponse{Error: "malformed body"})
	}

	outcome, err := api.svc.Reconcile(ctx.Request().Context(), billing.Event{
		Type:      data.Event,
		PaymentID: data.Payment.ID,
		Payload:   body,
	})
	if err != nil {
		api.logger.Error("reconciling gateway event", errors.Wrap(err, "reconciling"), map[string]interface{}{
			"event":      data.Event,
			"payment_id": data.Payment.ID,
		})
		return ctx.JSON(http.StatusInternalServerError, WebhookResponse{Error: "internal error"})
	}
	return ctx.JSON(http.StatusOK, WebhookResponse{Received: true, Outcome: outcome})
}
