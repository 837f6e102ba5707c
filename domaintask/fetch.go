package domaintask

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	eventloop "github.com/joeycumines/go-eventloop"
)

// Request models an outbound HTTP request made by [Scope.Fetch]. A relative
// URL is resolved against the scope's base URL.
type Request struct {
	Header http.Header
	Method string
	URL    string
	Body   []byte
}

// Response is the fulfilment value of [Scope.Fetch]. Non-2xx statuses are
// not treated as errors.
type Response struct {
	Header     http.Header
	URL        string
	Status     string
	Body       []byte
	StatusCode int
}

// OK reports whether the status code is within [200, 299].
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

type fetcher struct {
	client   *http.Client
	maxBytes int64
}

func newFetcher(client *http.Client, maxBytes int64) *fetcher {
	return &fetcher{client: client, maxBytes: maxBytes}
}

// Fetch performs req as a tracked task, see [Scope.Go]. The returned
// promise is fulfilled with a *[Response], or rejected if the request could
// not be made, or its body could not be read in full.
func (s *Scope) Fetch(req *Request) *eventloop.ChainedPromise {
	if req == nil {
		req = &Request{}
	}

	target, err := s.ResolveURL(req.URL)
	if err != nil {
		return s.Go(func(context.Context) (any, error) {
			return nil, err
		})
	}

	method := req.Method
	if method == `` {
		method = http.MethodGet
	}
	header := req.Header.Clone()
	body := req.Body
	f := s.fetcher
	logger := s.logger

	return s.Go(func(ctx context.Context) (any, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
		if err != nil {
			return nil, fmt.Errorf(`domaintask: fetch %s: %w`, target, err)
		}
		if header != nil {
			httpReq.Header = header
		}

		logger.Debug().
			Str(`method`, method).
			Str(`url`, target.String()).
			Log(`domain task fetch`)

		resp, err := f.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf(`domaintask: fetch %s: %w`, target, err)
		}
		defer resp.Body.Close()

		// read one byte past the limit, to detect truncation
		b, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf(`domaintask: fetch %s: reading body: %w`, target, err)
		}
		if int64(len(b)) > f.maxBytes {
			return nil, fmt.Errorf(`domaintask: fetch %s: response body exceeds %d bytes`, target, f.maxBytes)
		}

		return &Response{
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       b,
		}, nil
	})
}
