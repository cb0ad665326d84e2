package quote_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
	"github.com/noah-isme/b2b-pricing/internal/quote"
)

type singleResponse struct {
	Data quote.Quote `json:"data"`
}

type batchResponse struct {
	Data []quote.Quote `json:"data"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	data := fakeERP{
		products: map[string]erp.ProductSnapshot{
			"SKU-1": {SKU: "SKU-1", CurrentCost: fptr(100), InvoicedListPrice: 150, WhiteListPrice: 140},
		},
		customers: map[string]erp.Customer{
			"C-1": {Code: "C-1", Visibility: pricing.VisibilityBoth},
		},
	}
	svc, err := quote.NewService(quote.ServiceConfig{
		Settings: fakeSettings{cfg: defaultSettings()},
		ERP:      data,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	handler := quote.NewHandler(quote.HandlerConfig{Service: svc})
	r := chi.NewRouter()
	r.Get("/api/v1/customers/{code}/products/{sku}/quote", handler.Single)
	r.Post("/api/v1/quotes", handler.Batch)
	return r
}

func TestSingleQuoteEndpoint(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/C-1/products/SKU-1/quote", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp singleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SKU-1", resp.Data.SKU)
	require.NotNil(t, resp.Data.Invoiced)
	require.InDelta(t, 150.0, *resp.Data.Invoiced, 1e-9)
}

func TestSingleQuoteUnknownProduct(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/C-1/products/NOPE/quote", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchQuoteEndpoint(t *testing.T) {
	router := newRouter(t)

	body := `{"customerCode":"C-1","skus":["SKU-1"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
}

func TestBatchQuoteValidation(t *testing.T) {
	router := newRouter(t)

	for _, body := range []string{
		`{"skus":["SKU-1"]}`,
		`{"customerCode":"C-1","skus":[]}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}
