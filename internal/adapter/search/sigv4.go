package search

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
)

// sigV4Transport signs every request for Amazon OpenSearch Service.
type sigV4Transport struct {
	signer  *v4.Signer
	service string
	region  string
	next    http.RoundTripper
	now     func() time.Time
}

func (t *sigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	var payload []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		payload, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body for signing: %w", err)
		}
	}

	var body io.ReadSeeker
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	if _, err := t.signer.Sign(req, body, t.service, t.region, t.now()); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	if payload != nil {
		req.Body = io.NopCloser(bytes.NewReader(payload))
		req.ContentLength = int64(len(payload))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}
	return t.next.RoundTrip(req)
}
