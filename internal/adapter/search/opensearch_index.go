package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const maxErrorBody = 512

// Options configures the OpenSearch client.
type Options struct {
	Endpoints          []string
	Index              string
	Auth               Auth
	InsecureSkipVerify bool
	Timeout            time.Duration
	MaxRetries         int
	RetryWaitMin       time.Duration
	RetryWaitMax       time.Duration
}

// IndexRepository implements domain.SearchIndex with one index request per record.
// Documents carry no ID, so re-sending a record creates a second document.
type IndexRepository struct {
	client *opensearch.Client
	index  string
	logger *slog.Logger
}

// NewIndexRepository builds the OpenSearch client and its retrying transport.
func NewIndexRepository(opts Options, logger *slog.Logger) (*IndexRepository, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("at least one search endpoint is required")
	}
	if opts.Index == "" {
		return nil, errors.New("search index name is required")
	}
	logger = logger.With("component", "opensearch_index")

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    opts.Endpoints,
		Username:     opts.Auth.Username,
		Password:     opts.Auth.Password,
		Transport:    newTransport(opts, logger),
		DisableRetry: true, // retries happen in the retryablehttp transport
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &IndexRepository{
		client: client,
		index:  opts.Index,
		logger: logger,
	}, nil
}

// Index writes a single document into the configured index.
func (r *IndexRepository) Index(ctx context.Context, record domain.LogRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: r.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("index request to %s failed: %w", r.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		if permanentRejection(res.StatusCode) {
			return fmt.Errorf("%w: %w: index %s returned %d: %s", domain.ErrIndexRejected, domain.ErrDocumentInvalid, r.index, res.StatusCode, bytes.TrimSpace(excerpt))
		}
		return fmt.Errorf("%w: index %s returned %d: %s", domain.ErrIndexRejected, r.index, res.StatusCode, bytes.TrimSpace(excerpt))
	}

	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// permanentRejection reports client errors other than auth, timeout and throttling.
func permanentRejection(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
		http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}

// newTransport chains optional SigV4 signing in front of a retrying HTTP transport.
func newTransport(opts Options, logger *slog.Logger) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev clusters
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: base, Timeout: opts.Timeout}
	rc.RetryMax = opts.MaxRetries
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = logger
	// Hand the final response back so the caller sees the real status code.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	var rt http.RoundTripper = &retryablehttp.RoundTripper{Client: rc}
	if opts.Auth.Signer != nil {
		rt = &sigV4Transport{
			signer:  opts.Auth.Signer,
			service: opts.Auth.SigningService,
			region:  opts.Auth.SigningRegion,
			next:    rt,
			now:     time.Now,
		}
	}
	return rt
}
