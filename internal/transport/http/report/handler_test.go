package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/report"
)

type fakeReporter struct {
	topN  int
	limit int
	err   error
}

func (f *fakeReporter) Currency() currency.Unit { return currency.EUR }

func (f *fakeReporter) Summary(context.Context) (report.Summary, error) {
	if f.err != nil {
		return report.Summary{}, f.err
	}
	return report.Summary{Customers: 100, Orders: 500, JoinedRows: 500, Partition: report.Partition{WithOrders: 99, WithoutOrders: 1}}, nil
}

func (f *fakeReporter) TopOrders(_ context.Context, n int) ([]entity.Order, error) {
	f.topN = n
	return []entity.Order{*entity.NewOrder(uuid.New(), decimal.NewFromInt(999))}, nil
}

func (f *fakeReporter) InnerJoin(_ context.Context, limit int) ([]report.CustomerOrderRow, error) {
	f.limit = limit
	return nil, nil
}

func serve(t *testing.T, h *Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	Register(e, h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSummary(t *testing.T) {
	rec, body := serve(t, newHandler(&fakeReporter{}, 5), "/reports/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 100, data["customers"])
	assert.EqualValues(t, 500, data["joined_rows"])

	rec, body = serve(t, newHandler(&fakeReporter{err: errors.New("db down")}, 5), "/reports/summary")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestTopOrdersParam(t *testing.T) {
	fake := &fakeReporter{}
	h := newHandler(fake, 5)

	rec, body := serve(t, h, "/reports/top-orders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, fake.topN)
	assert.Len(t, body["data"], 1)

	rec, _ = serve(t, h, "/reports/top-orders?n=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, fake.topN)

	for _, bad := range []string{"0", "-1", "x", "1001"} {
		rec, _ = serve(t, h, "/reports/top-orders?n="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestCustomerOrdersEmpty(t *testing.T) {
	fake := &fakeReporter{}
	rec, body := serve(t, newHandler(fake, 5), "/reports/customer-orders?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, fake.limit)
	assert.Equal(t, []any{}, body["data"])
}
