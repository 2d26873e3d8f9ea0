package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/services/spreadsheet"
)

type billingApi struct {
	svc        billing.Service
	logger     core.Logger
	translator ut.Translator
	conf       *core.Config
}

func registerBillingAPI(
	g *echo.Group,
	staff echo.MiddlewareFunc,
	svc billing.Service,
	logger core.Logger,
	translator ut.Translator,
	conf *core.Config,
) {
	api := billingApi{svc: svc, logger: logger, translator: translator, conf: conf}

	// called by the payment gateway
	g.POST("/webhooks/gateway", api.webhook)

	cg := g.Group("/charges", staff, financeOnly)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.POST("/manual", api.createManual)
	cg.GET("/export", api.export)
	cg.GET("/:id", api.retrieve)
	cg.DELETE("/:id", api.destroy)
	cg.POST("/:id/settle", api.settle)
	cg.GET("/:id/reminder", api.reminder)
	cg.GET("/:id/events", api.events)

	rg := g.Group("/reports", staff, financeOnly)
	rg.GET("/summary", api.summary)
	rg.GET("/delinquents", api.delinquents)
	rg.GET("/delinquents/export", api.exportDelinquents)
	rg.GET("/delinquents/:studentId/contact", api.contact)
}

// Charges

func (api *billingApi) create(ctx echo.Context) error {
	var data billing.NewCharge
	if err := ctx.Bind(&data); err != nil {
		return ctx.JSON(http.StatusBadRequest, ChargeResponse{Error: "malformed charge request"})
	}

	chrg, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		switch {
		case core.IsValidationError(err), isValidatorError(err):
			return ctx.JSON(http.StatusBadRequest, ChargeResponse{Error: errorText(err, api.translator)})
		case billing.IsGatewayError(err):
			return ctx.JSON(http.StatusBadGateway, ChargeResponse{Error: errorText(err, api.translator)})
		}
		return errors.Wrap(err, "creating charge")
	}

	resp := ChargeResponse{Success: true, Charge: &chrg}
	if chrg.PaymentLink != nil {
		resp.Link = *chrg.PaymentLink
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *billingApi) createManual(ctx echo.Context) error {
	var data billing.NewCharge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCharge")
	}

	chrg, err := api.svc.CreateManual(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating manual charge")
	}
	return ctx.JSON(http.StatusCreated, chrg)
}

func (api *billingApi) queryCharges(ctx echo.Context) ([]billing.ChargeView, error) {
	filter := new(billing.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, core.NewValidationError(err)
	}

	charges, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying charges")
	}
	if charges == nil {
		charges = []billing.ChargeView{}
	}
	return charges, nil
}

func (api *billingApi) query(ctx echo.Context) error {
	charges, err := api.queryCharges(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, charges)
}

func (api *billingApi) export(ctx echo.Context) error {
	charges, err := api.queryCharges(ctx)
	if err != nil {
		return err
	}

	buf, err := spreadsheet.ChargesWorkbook(charges)
	if err != nil {
		return errors.Wrap(err, "exporting charges")
	}
	return attachment(ctx, buf, fmt.Sprintf("cobrancas-%s.xlsx", api.svc.Today()))
}

func (api *billingApi) retrieve(ctx echo.Context) error {
	chrg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding charge by ID")
	}
	return ctx.JSON(http.StatusOK, chrg)
}

func (api *billingApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting charge")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *billingApi) settle(ctx echo.Context) error {
	chrg, err := api.svc.Settle(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "settling charge")
	}
	return ctx.JSON(http.StatusOK, chrg)
}

func (api *billingApi) reminder(ctx echo.Context) error {
	rmdr, err := api.svc.Reminder(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "composing charge reminder")
	}
	return ctx.JSON(http.StatusOK, rmdr)
}

func (api *billingApi) events(ctx echo.Context) error {
	evs, err := api.svc.Events(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying gateway events")
	}
	return ctx.JSON(http.StatusOK, evs)
}

// Reports

func (api *billingApi) summary(ctx echo.Context) error {
	year, month, err := monthParam(ctx, "month", api.svc.Today())
	if err != nil {
		return err
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), year, month)
	if err != nil {
		return errors.Wrap(err, "summarizing month")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *billingApi) delinquents(ctx echo.Context) error {
	delinquents, err := api.svc.Delinquents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing delinquents")
	}
	return ctx.JSON(http.StatusOK, delinquents)
}

func (api *billingApi) exportDelinquents(ctx echo.Context) error {
	delinquents, err := api.svc.Delinquents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing delinquents")
	}

	buf, err := spreadsheet.DelinquencyWorkbook(delinquents)
	if err != nil {
		return errors.Wrap(err, "exporting delinquents")
	}
	return attachment(ctx, buf, fmt.Sprintf("inadimplentes-%s.xlsx", api.svc.Today()))
}

func (api *billingApi) contact(ctx echo.Context) error {
	rmdr, err := api.svc.Contact(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "composing contact message")
	}
	return ctx.JSON(http.StatusOK, rmdr)
}

func attachment(ctx echo.Context, buf *bytes.Buffer, filename string) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

type ChargeResponse struct {
	Success bool                `json:"success"`
	Link    string              `json:"link,omitempty"`
	Error   string              `json:"error,omitempty"`
	Charge  *billing.ChargeView `json:"charge,omitempty"`
}
