package spapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient serves the token endpoint at /token and api on every other
// path.
func newTestClient(t *testing.T, api http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artifact" {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, "tok-1", r.Header.Get("x-amz-access-token"))
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{
		Endpoint:      srv.URL,
		TokenURL:      srv.URL + "/token",
		ClientID:      "id",
		ClientSecret:  "secret",
		RefreshToken:  "rt",
		MarketplaceID: "M1",
		Rate:          1000,
		Burst:         100,
	})
	return c, &tokenCalls
}

func TestCreateReport(t *testing.T) {
	c, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/reports/2021-06-30/reports":
			var body createReportRequest
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			assert.Equal(t, "GET_FBA_FULFILLMENT_CUSTOMER_RETURNS_DATA", body.ReportType)
			assert.Equal(t, []string{"M1"}, body.MarketplaceIDs)
			assert.Equal(t, "2024-01-01T00:00:00Z", body.DataStartTime)
			w.WriteHeader(http.StatusAccepted)
			io.WriteString(w, `{"reportId":"rep-42"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/reports/2021-06-30/reports/rep-42":
			io.WriteString(w, `{"reportId":"rep-42","processingStatus":"IN_PROGRESS"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})

	start := time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600))
	id, err := c.CreateReport(context.Background(), model.KindReturns.ReportType(), model.ReportParameters{DataStartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, "rep-42", id)

	status, err := c.GetReport(context.Background(), "rep-42")
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", status.ProcessingStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls), "token is cached")
}

func TestAccessToken_RefreshedAfterExpiry(t *testing.T) {
	c, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"reportId":"r","processingStatus":"IN_QUEUE"}`)
	})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.GetReport(context.Background(), "r")
	require.NoError(t, err)
	now = now.Add(58 * time.Minute)
	_, err = c.GetReport(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))

	now = now.Add(2 * time.Minute)
	_, err = c.GetReport(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(tokenCalls))
}

func TestDownload_NonOK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	})
	_, err := c.Download(context.Background(), c.cfg.Endpoint+"/artifact")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestCreateReport_NotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"errors":[{"code":"QuotaExceeded"}]}`)
	})

	_, err := c.CreateReport(context.Background(), "X", model.ReportParameters{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus())
	assert.Contains(t, apiErr.ResponseBody(), "QuotaExceeded")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetReport_RetriesThrottledGet(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"reportId":"rep-1","processingStatus":"DONE","reportDocumentId":"doc-1"}`)
	})

	status, err := c.GetReport(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, "DONE", status.ProcessingStatus)
	assert.Equal(t, "doc-1", status.ReportDocumentID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetReport_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := c.GetReport(context.Background(), "rep-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func noWait(context.Context, time.Duration) error { return nil }

func TestGetReport_MapsWireStatuses(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			io.WriteString(w, `{"reportId":"r","processingStatus":"IN_QUEUE"}`)
		case 2:
			io.WriteString(w, `{"reportId":"r","processingStatus":"IN_PROGRESS"}`)
		default:
			io.WriteString(w, `{"reportId":"r","processingStatus":"DONE","reportDocumentId":"doc-9"}`)
		}
	})

	jobs := pipeline.NewJobController(c, pipeline.SleeperFunc(noWait), nil)
	job, err := jobs.PollUntilDone(context.Background(),
		model.ReportJob{ID: "r", Kind: model.KindReturns, Status: model.StatusQueued}, time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, job.Status)
	assert.Equal(t, 3, job.Polls)
	assert.Equal(t, "doc-9", job.DocumentID)
}

func TestGetReport_FatalIsJobFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"reportId":"r","processingStatus":"FATAL","reportDocumentId":"doc-err"}`)
	})

	status, err := c.GetReport(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", status.ProcessingStatus)

	jobs := pipeline.NewJobController(c, pipeline.SleeperFunc(noWait), nil)
	job, err := jobs.PollUntilDone(context.Background(),
		model.ReportJob{ID: "r", Kind: model.KindReturns, Status: model.StatusQueued}, time.Second, 5)
	var jobErr *pipeline.JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, model.StatusFailed, jobErr.Status)
	assert.Equal(t, 1, job.Polls)
}

func TestGetReport_UnknownStatusRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"reportId":"r","processingStatus":"WEIRD"}`)
	})

	jobs := pipeline.NewJobController(c, pipeline.SleeperFunc(noWait), nil)
	_, err := jobs.PollUntilDone(context.Background(),
		model.ReportJob{ID: "r", Kind: model.KindReturns, Status: model.StatusQueued}, time.Second, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEIRD")
	var jobErr *pipeline.JobFailedError
	assert.False(t, errors.As(err, &jobErr))
}

func TestGetReportDocumentAndDownload(t *testing.T) {
	var srvURL string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reports/2021-06-30/documents/doc-1":
			io.WriteString(w, `{"reportDocumentId":"doc-1","url":"`+srvURL+`/artifact","compressionAlgorithm":"GZIP"}`)
		case "/artifact":
			io.WriteString(w, "raw-bytes")
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = c.cfg.Endpoint

	doc, err := c.GetReportDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "GZIP", doc.CompressionAlgorithm)

	data, err := c.Download(context.Background(), doc.URL)
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes", string(data))
}

func TestListWindow_FollowsNextToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/fba/inbound/v0/shipments", r.URL.Path)
		switch q.Get("QueryType") {
		case "DATE_RANGE":
			assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("LastUpdatedAfter"))
			assert.Equal(t, "2024-02-01T00:00:00Z", q.Get("LastUpdatedBefore"))
			assert.Equal(t, "50", q.Get("PageSize"))
			assert.True(t, strings.Contains(q.Get("ShipmentStatusList"), "CLOSED"))
			io.WriteString(w, `{"payload":{"ShipmentData":[{"ShipmentId":"S1","ShipmentName":"one","ShipmentStatus":"CLOSED"}],"NextToken":"n1"}}`)
		case "NEXT_TOKEN":
			assert.Equal(t, "n1", q.Get("NextToken"))
			io.WriteString(w, `{"payload":{"ShipmentData":[{"ShipmentId":"S2","ShipmentName":"two","ShipmentStatus":"WORKING"}]}}`)
		default:
			t.Errorf("unexpected query type %q", q.Get("QueryType"))
		}
	})

	entities, err := c.ListWindow(context.Background(), model.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "S1", entities[0].ID)
	assert.Equal(t, "CLOSED", entities[0].Attributes[pipeline.AttrShipmentStatus])
	assert.Equal(t, "two", entities[1].Attributes[pipeline.AttrShipmentName])
}

func TestShipmentSource(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fba/inbound/v0/shipments":
			assert.Equal(t, "SHIPMENT", r.URL.Query().Get("QueryType"))
			assert.Equal(t, "S1,S2", r.URL.Query().Get("ShipmentIdList"))
			io.WriteString(w, `{"payload":{"ShipmentData":[{"ShipmentId":"S1","ShipmentName":"one","ShipmentStatus":"CLOSED"}]}}`)
		case r.URL.Path == "/fba/inbound/v0/shipments/S1/items" && r.URL.Query().Get("NextToken") == "":
			io.WriteString(w, `{"payload":{"ItemData":[{"SellerSKU":"a","QuantityShipped":5,"QuantityReceived":4}],"NextToken":"p2"}}`)
		case r.URL.Path == "/fba/inbound/v0/shipments/S1/items":
			io.WriteString(w, `{"payload":{"ItemData":[{"SellerSKU":"b","QuantityShipped":3,"QuantityReceived":3}]}}`)
		default:
			http.NotFound(w, r)
		}
	})
	source := ShipmentSource{Client: c}

	attrs, err := source.ListChunk(context.Background(), []string{"S1", "S2"})
	require.NoError(t, err)
	assert.Equal(t, "one", attrs["S1"][pipeline.AttrShipmentName])
	assert.NotContains(t, attrs, "S2")

	fields, err := source.LookupItem(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, fields[pipeline.FieldQuantityShipped])
	assert.Equal(t, 7.0, fields[pipeline.FieldQuantityReceived])

	_, err = source.LookupItem(context.Background(), "S9")
	assert.Error(t, err)
}

func TestOrderFeeSource(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/finances/v0/orders/o-1/financialEvents":
			io.WriteString(w, `{"payload":{"FinancialEvents":{"ShipmentEventList":[{"ShipmentItemList":[{"ItemFeeList":[
				{"FeeType":"FBAPerUnitFulfillmentFee","FeeAmount":{"CurrencyCode":"GBP","CurrencyAmount":-2.75}},
				{"FeeType":"Commission","FeeAmount":{"CurrencyCode":"GBP","CurrencyAmount":-1.2}},
				{"FeeType":"Commission","FeeAmount":{"CurrencyCode":"GBP","CurrencyAmount":-9.9}}
			]}]}]}}}`)
		case "/finances/v0/orders/o-2/financialEvents":
			io.WriteString(w, `{"payload":{"FinancialEvents":{"ShipmentEventList":[]}}}`)
		default:
			http.NotFound(w, r)
		}
	})
	source := OrderFeeSource{Client: c}

	fields, err := source.LookupItem(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		pipeline.FieldFBAFee:             2.75,
		pipeline.FieldCommissionFee:      1.2,
		pipeline.FieldDigitalServicesFee: 0,
	}, fields)

	fields, err = source.LookupItem(context.Background(), "o-2")
	require.NoError(t, err)
	assert.Zero(t, fields[pipeline.FieldFBAFee])
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "documents", endpointLabel("/reports/2021-06-30/documents/d"))
	assert.Equal(t, "reports", endpointLabel("/reports/2021-06-30/reports"))
	assert.Equal(t, "shipment_items", endpointLabel("/fba/inbound/v0/shipments/S1/items"))
	assert.Equal(t, "shipments", endpointLabel("/fba/inbound/v0/shipments"))
	assert.Equal(t, "financial_events", endpointLabel("/finances/v0/orders/o/financialEvents"))
}
