// Package asaas bills guardians through the Asaas payment gateway.
package asaas

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
)

// billingTypeUndefined lets the guardian pick pix or boleto on the invoice page.
const billingTypeUndefined = "UNDEFINED"

type (
	customerRequest struct {
		Name    string `json:"name"`
		CpfCnpj string `json:"cpfCnpj"`
	}

	customer struct {
		ID string `json:"id"`
	}

	customerList struct {
		Data []customer `json:"data"`
	}

	paymentRequest struct {
		Customer          string  `json:"customer"`
		BillingType       string  `json:"billingType"`
		Value             float64 `json:"value"`
		DueDate           string  `json:"dueDate"`
		Description       string  `json:"description"`
		ExternalReference string  `json:"externalReference"`
	}

	payment struct {
		ID         string `json:"id"`
		InvoiceURL string `json:"invoiceUrl"`
	}

	errorBody struct {
		Errors []struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"errors"`
	}
)

type Client struct {
	baseURL string
	apiKey  string
	rest    *rest.Client
}

var _ billing.Gateway = (*Client)(nil) // interface compliance check

func NewClient(conf *core.Config) (*Client, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.Gateway.BaseURL, "gateway base url"),
		vala.StringNotEmpty(conf.Gateway.APIKey, "gateway api key"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "configuring payment gateway")
	}

	return &Client{
		baseURL: strings.TrimRight(conf.Gateway.BaseURL, "/"),
		apiKey:  conf.Gateway.APIKey,
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.Gateway.Timeout}},
	}, nil
}

func (c *Client) do(ctx context.Context, op string, method rest.Method, path string, query map[string]string, in, out interface{}) error {
	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + path,
		QueryParams: query,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"access_token": c.apiKey,
		},
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding gateway request")
		}
		req.Body = body
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return &billing.GatewayError{Op: op, Message: err.Error()}
	}
	if res.StatusCode >= http.StatusBadRequest {
		return &billing.GatewayError{Op: op, StatusCode: res.StatusCode, Message: errorMessage(res)}
	}
	if err = json.Unmarshal([]byte(res.Body), out); err != nil {
		return &billing.GatewayError{Op: op, StatusCode: res.StatusCode, Message: "unreadable response: " + err.Error()}
	}
	return nil
}

// errorMessage returns the first error description of the gateway response.
func errorMessage(res *rest.Response) string {
	var body errorBody
	if err := json.Unmarshal([]byte(res.Body), &body); err == nil && len(body.Errors) > 0 && body.Errors[0].Description != "" {
		return body.Errors[0].Description
	}
	return http.StatusText(res.StatusCode)
}

// CreateOrFetchCustomer returns the id of the gateway customer registered with `taxID`, creating it when needed.
func (c *Client) CreateOrFetchCustomer(ctx context.Context, name, taxID string) (string, error) {
	var found customerList
	if err := c.do(ctx, "customer", rest.Get, "/customers", map[string]string{"cpfCnpj": taxID}, nil, &found); err != nil {
		return "", err
	}
	if len(found.Data) > 0 && found.Data[0].ID != "" {
		return found.Data[0].ID, nil
	}

	var created customer
	if err := c.do(ctx, "customer", rest.Post, "/customers", nil, customerRequest{Name: name, CpfCnpj: taxID}, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &billing.GatewayError{Op: "customer", Message: "no customer id returned"}
	}
	return created.ID, nil
}

func (c *Client) CreateCharge(ctx context.Context, req billing.GatewayChargeRequest) (billing.GatewayCharge, error) {
	value, _ := req.Amount.Round(2).Float64()
	in := paymentRequest{
		Customer:          req.CustomerID,
		BillingType:       billingTypeUndefined,
		Value:             value,
		DueDate:           req.DueDate.String(),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}

	var out payment
	if err := c.do(ctx, "charge", rest.Post, "/payments", nil, in, &out); err != nil {
		return billing.GatewayCharge{}, err
	}
	if out.ID == "" || out.InvoiceURL == "" {
		return billing.GatewayCharge{}, &billing.GatewayError{Op: "charge", Message: "no payment link returned"}
	}
	return billing.GatewayCharge{PaymentLink: out.InvoiceURL, ExternalID: out.ID}, nil
}
