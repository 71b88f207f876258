package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-report-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpErr struct {
	code int
	body string
}

func (e *httpErr) Error() string        { return e.body }
func (e *httpErr) HTTPStatus() int      { return e.code }
func (e *httpErr) ResponseBody() string { return e.body }

// fakeAPI answers GetReport from a script of statuses
type fakeAPI struct {
	mu          sync.Mutex
	createErr   error
	reportType  string
	params      model.ReportParameters
	statuses    []string
	docID       string
	statusErr   error
	polls       int
	doc         model.ReportDocument
	payload     []byte
	downloadURL string
}

func (f *fakeAPI) CreateReport(_ context.Context, reportType string, params model.ReportParameters) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportType, f.params = reportType, params
	if f.createErr != nil {
		return "", f.createErr
	}
	return "rep-1", nil
}

func (f *fakeAPI) GetReport(_ context.Context, id string) (model.ReportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return model.ReportStatus{}, f.statusErr
	}
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	st := model.ReportStatus{ReportID: id, ProcessingStatus: f.statuses[i]}
	if st.ProcessingStatus == "DONE" {
		st.ReportDocumentID = f.docID
	}
	return st, nil
}

func (f *fakeAPI) GetReportDocument(_ context.Context, docID string) (model.ReportDocument, error) {
	doc := f.doc
	doc.ReportDocumentID = docID
	return doc, nil
}

func (f *fakeAPI) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.downloadURL = url
	f.mu.Unlock()
	return f.payload, nil
}

// recordingSleeper returns immediately and records requested delays
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

func validParams() model.ReportParameters {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return model.ReportParameters{MarketplaceIDs: []string{"M1"}, DataStartTime: &start, DataEndTime: &end}
}

func TestSubmit(t *testing.T) {
	api := &fakeAPI{}
	c := NewJobController(api, &recordingSleeper{}, nil)

	job, err := c.Submit(context.Background(), model.KindReturns, validParams())
	require.NoError(t, err)
	assert.Equal(t, "rep-1", job.ID)
	assert.Equal(t, model.StatusQueued, job.Status)
	assert.Equal(t, "GET_FBA_FULFILLMENT_CUSTOMER_RETURNS_DATA", api.reportType)
}

func TestSubmit_Rejections(t *testing.T) {
	c := NewJobController(&fakeAPI{createErr: &httpErr{code: 429, body: "throttled"}}, nil, nil)

	_, err := c.Submit(context.Background(), model.KindOrders, validParams())
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 429, subErr.StatusCode)
	assert.Equal(t, "throttled", subErr.Body)
	assert.True(t, IsRetryable(err))

	_, err = c.Submit(context.Background(), model.ReportKind("bogus"), validParams())
	require.ErrorAs(t, err, &subErr)
	assert.False(t, IsRetryable(err))
}

func TestSubmit_InvertedWindowNeverReachesAPI(t *testing.T) {
	api := &fakeAPI{}
	c := NewJobController(api, nil, nil)
	p := validParams()
	p.DataStartTime, p.DataEndTime = p.DataEndTime, p.DataStartTime

	_, err := c.Submit(context.Background(), model.KindOrders, p)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Empty(t, api.reportType)
}

func TestPollUntilDone_ReachesDone(t *testing.T) {
	api := &fakeAPI{statuses: []string{"IN_PROGRESS", "IN_PROGRESS", "DONE"}, docID: "doc-9"}
	sleeper := &recordingSleeper{}
	c := NewJobController(api, sleeper, nil)

	job, err := c.PollUntilDone(context.Background(), model.ReportJob{ID: "rep-1", Kind: model.KindOrders}, time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, job.Status)
	assert.Equal(t, "doc-9", job.DocumentID)
	assert.Equal(t, 3, job.Polls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sleeper.delays)
}

func TestPollUntilDone_TerminalFailure(t *testing.T) {
	for _, status := range []string{"FAILED", "CANCELLED"} {
		api := &fakeAPI{statuses: []string{"IN_PROGRESS", status}}
		c := NewJobController(api, &recordingSleeper{}, nil)

		job, err := c.PollUntilDone(context.Background(), model.ReportJob{ID: "rep-1"}, time.Second, 5)
		var jobErr *JobFailedError
		require.ErrorAs(t, err, &jobErr, status)
		assert.Equal(t, job.Status, jobErr.Status)
		assert.Equal(t, 2, api.polls)

		// a terminal job is returned as is, without another poll
		_, err = c.PollUntilDone(context.Background(), job, time.Second, 5)
		require.ErrorAs(t, err, &jobErr)
		assert.Equal(t, 2, api.polls)
	}
}

func TestPollUntilDone_MaxPolls(t *testing.T) {
	api := &fakeAPI{statuses: []string{"IN_PROGRESS"}}
	sleeper := &recordingSleeper{}
	c := NewJobController(api, sleeper, nil)

	job, err := c.PollUntilDone(context.Background(), model.ReportJob{ID: "rep-1"}, time.Second, 3)
	var timeoutErr *PollTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, timeoutErr.Polls)
	assert.Equal(t, 3, job.Polls)
	assert.Equal(t, 3, sleeper.count())
	assert.True(t, IsRetryable(err))
}

func TestPollUntilDone_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &fakeAPI{statuses: []string{"IN_PROGRESS"}}
	c := NewJobController(api, &recordingSleeper{}, nil)

	_, err := c.PollUntilDone(ctx, model.ReportJob{ID: "rep-1"}, time.Second, 3)
	var timeoutErr *PollTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.polls)
}

func TestPollUntilDone_UnknownStatus(t *testing.T) {
	c := NewJobController(&fakeAPI{statuses: []string{"PAUSED"}}, &recordingSleeper{}, nil)
	_, err := c.PollUntilDone(context.Background(), model.ReportJob{ID: "rep-1"}, time.Second, 3)
	assert.ErrorContains(t, err, "unknown job status")
}

func TestFetchArtifact(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("a\tb\n"))
	zw.Close()

	api := &fakeAPI{doc: model.ReportDocument{URL: "https://example.test/doc", CompressionAlgorithm: "GZIP"}, payload: buf.Bytes()}
	c := NewJobController(api, nil, nil)

	data, ref, err := c.FetchArtifact(context.Background(), model.ReportJob{ID: "rep-1", Status: model.StatusDone, DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n", string(data))
	assert.Equal(t, model.CompressionGzip, ref.Compression)
	assert.Equal(t, "https://example.test/doc", api.downloadURL)
}

func TestFetchArtifact_Errors(t *testing.T) {
	ctx := context.Background()
	c := NewJobController(&fakeAPI{doc: model.ReportDocument{URL: "u", CompressionAlgorithm: "ZSTD"}}, nil, nil)

	_, _, err := c.FetchArtifact(ctx, model.ReportJob{ID: "r", Status: model.StatusInProgress})
	var notDone *JobNotDoneError
	assert.ErrorAs(t, err, &notDone)

	_, _, err = c.FetchArtifact(ctx, model.ReportJob{ID: "r", Status: model.StatusDone})
	var missing *ArtifactMissingError
	assert.ErrorAs(t, err, &missing)
	assert.False(t, IsRetryable(err))

	_, _, err = c.FetchArtifact(ctx, model.ReportJob{ID: "r", Status: model.StatusDone, DocumentID: "d"})
	var unsupported *UnsupportedCompressionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "ZSTD", unsupported.Value)
	assert.False(t, IsRetryable(err))

	c = NewJobController(&fakeAPI{doc: model.ReportDocument{}}, nil, nil)
	_, _, err = c.FetchArtifact(ctx, model.ReportJob{ID: "r", Status: model.StatusDone, DocumentID: "d"})
	assert.ErrorAs(t, err, &missing)
}

func TestValidateParameters(t *testing.T) {
	assert.NoError(t, ValidateParameters(validParams()))
	assert.Error(t, ValidateParameters(model.ReportParameters{}))
	assert.NoError(t, ValidateParameters(model.ReportParameters{MarketplaceIDs: []string{"M"}}))

	p := validParams()
	p.DataEndTime = p.DataStartTime
	assert.Error(t, ValidateParameters(p))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&SubmissionError{StatusCode: 503}))
	assert.False(t, IsRetryable(&SubmissionError{StatusCode: 400}))
	assert.True(t, IsRetryable(&JobFailedError{JobID: "x", Status: model.StatusFailed}))
	assert.True(t, IsRetryable(&ChunkError{Err: errors.New("boom")}))
	assert.True(t, IsRetryable(&WindowError{Err: errors.New("boom")}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("decode failed")))
}
