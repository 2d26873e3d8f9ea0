package asaas

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
)

type gatewayStub struct {
	customers   []string // existing customer ids, returned by the lookup
	failPayment bool
	payments    []paymentRequest
	created     []customerRequest
}

func (s *gatewayStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("access_token"))
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "12345678901", r.URL.Query().Get("cpfCnpj"))
			list := customerList{Data: make([]customer, 0)}
			for _, id := range s.customers {
				list.Data = append(list.Data, customer{ID: id})
			}
			_ = json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			var req customerRequest
			body, _ := ioutil.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &req))
			s.created = append(s.created, req)
			_ = json.NewEncoder(w).Encode(customer{ID: "cus_new"})
		}
	})
	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		body, _ := ioutil.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		s.payments = append(s.payments, req)
		if s.failPayment {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_value","description":"O valor deve ser maior que R$ 5,00"}]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(payment{ID: "pay_123", InvoiceURL: "https://pay.test/i/pay_123"})
	})
	return mux
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	conf := &core.Config{}
	conf.Gateway.BaseURL = baseURL
	conf.Gateway.APIKey = "test-key"
	conf.Gateway.Timeout = 5 * time.Second
	c, err := NewClient(conf)
	require.NoError(t, err)
	return c
}

func TestNewClient_invalidConfig(t *testing.T) {
	_, err := NewClient(&core.Config{})
	assert.Error(t, err)
}

func TestClient_CreateOrFetchCustomer(t *testing.T) {
	tests := []struct {
		name        string
		existing    []string
		wantID      string
		wantCreated int
	}{
		{name: "existing customer", existing: []string{"cus_1"}, wantID: "cus_1"},
		{name: "new customer", wantID: "cus_new", wantCreated: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &gatewayStub{customers: tt.existing}
			srv := httptest.NewServer(stub.handler(t))
			defer srv.Close()

			id, err := newTestClient(t, srv.URL).CreateOrFetchCustomer(context.Background(), "Maria", "12345678901")
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Len(t, stub.created, tt.wantCreated)
		})
	}
}

func TestClient_CreateCharge(t *testing.T) {
	stub := &gatewayStub{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	gc, err := newTestClient(t, srv.URL).CreateCharge(context.Background(), billing.GatewayChargeRequest{
		CustomerID:        "cus_1",
		Amount:            decimal.RequireFromString("450.50"),
		DueDate:           core.MustParseDate("2024-03-10"),
		Description:       "Agape - tuition",
		ExternalReference: "charge-1",
	})
	require.NoError(t, err)
	assert.Equal(t, billing.GatewayCharge{PaymentLink: "https://pay.test/i/pay_123", ExternalID: "pay_123"}, gc)

	require.Len(t, stub.payments, 1)
	assert.Equal(t, paymentRequest{
		Customer:          "cus_1",
		BillingType:       "UNDEFINED",
		Value:             450.5,
		DueDate:           "2024-03-10",
		Description:       "Agape - tuition",
		ExternalReference: "charge-1",
	}, stub.payments[0])
}

func TestClient_CreateCharge_rejected(t *testing.T) {
	stub := &gatewayStub{failPayment: true}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateCharge(context.Background(), billing.GatewayChargeRequest{
		CustomerID: "cus_1",
		Amount:     decimal.NewFromInt(1),
		DueDate:    core.MustParseDate("2024-03-10"),
	})
	require.Error(t, err)

	var gErr *billing.GatewayError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, http.StatusBadRequest, gErr.StatusCode)
	assert.Equal(t, "O valor deve ser maior que R$ 5,00", gErr.Message)
}

func TestClient_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).CreateOrFetchCustomer(context.Background(), "Maria", "12345678901")
	require.Error(t, err)
	assert.True(t, billing.IsGatewayError(err))
}
