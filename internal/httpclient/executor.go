package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/metrics"
	"github.com/jobmarket/marketplace-client/internal/rate"
)

// RequestIDHeader is stamped on every outbound request that does not already carry one.
const RequestIDHeader = "X-Request-ID"

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Executor performs single, rate-limited HTTP round trips. It never retries:
// status handling belongs to the caller.
type Executor struct {
	logger  *zap.Logger
	rateMgr *rate.Manager
	http    *http.Client
	tag     string
}

// New creates an Executor. rateMgr may be nil to disable client-side limiting.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, tag string) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{
		logger:  logger,
		rateMgr: rateMgr,
		http:    httpClient,
		tag:     tag,
	}
}

// Do executes req once and reads the whole body. rateLimitKey scopes the limiter
// (normally the upstream host). Transport failures are returned wrapped; any HTTP
// status, including 4xx and 5xx, is a successful round trip.
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey string) (*Response, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req = req.WithContext(ctx)
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	endpoint := metrics.EndpointLabel(req.URL.Path)
	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		metrics.IncAPIRequest(endpoint, req.Method, "error")
		e.logger.Warn(e.tag+".http_failed",
			zap.String("method", req.Method),
			zap.String("endpoint", endpoint),
			zap.String("request_id", req.Header.Get(RequestIDHeader)),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	metrics.ObserveDuration(metrics.APIRequestDuration, start, endpoint, req.Method)
	metrics.IncAPIRequest(endpoint, req.Method, strconv.Itoa(resp.StatusCode))
	if err != nil {
		e.logger.Warn(e.tag+".read_failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, fmt.Errorf("read %s body: %w", req.URL.Path, err)
	}

	if resp.StatusCode >= 500 {
		e.logger.Warn(e.tag+".server_error",
			zap.String("method", req.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", elapsed))
	} else {
		e.logger.Debug(e.tag+".http_done",
			zap.String("method", req.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
