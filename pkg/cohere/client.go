// Package cohere wraps the Cohere SDK's rerank endpoint behind a small
// interface.
package cohere

import (
	"context"
	"net/http"
	"time"

	sdk "github.com/cohere-ai/cohere-go/v2"
	sdkclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
	"github.com/rotisserie/eris"
)

const defaultModel = "rerank-v3.5"

// Client scores documents against a query with a cross-encoder.
type Client interface {
	Rerank(ctx context.Context, req RerankRequest) (*RerankResponse, error)
}

// RerankRequest asks for relevance scores of Documents against Query.
type RerankRequest struct {
	Model     string
	Query     string
	Documents []string
	TopN      int // zero returns every document
}

// RerankResponse lists results by descending relevance.
type RerankResponse struct {
	ID      string
	Results []RerankResult
}

// RerankResult points back into RerankRequest.Documents by Index.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

// Option configures the client.
type Option func(*options)

type options struct {
	baseURL string
	http    *http.Client
	model   string
}

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.http = hc
	}
}

// WithModel sets the default rerank model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

type sdkClient struct {
	client *sdkclient.Client
	model  string
}

// NewClient creates a Cohere rerank client.
func NewClient(apiKey string, opts ...Option) Client {
	o := &options{
		model: defaultModel,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}

	sdkOpts := []option.RequestOption{
		option.WithToken(apiKey),
		option.WithHTTPClient(o.http),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}

	return &sdkClient{
		client: sdkclient.NewClient(sdkOpts...),
		model:  o.model,
	}
}

func (c *sdkClient) Rerank(ctx context.Context, req RerankRequest) (*RerankResponse, error) {
	if len(req.Documents) == 0 {
		return &RerankResponse{}, nil
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	sdkReq := &sdk.V2RerankRequest{
		Model:     model,
		Query:     req.Query,
		Documents: req.Documents,
	}
	if req.TopN > 0 {
		topN := req.TopN
		sdkReq.TopN = &topN
	}

	resp, err := c.client.V2.Rerank(ctx, sdkReq)
	if err != nil {
		return nil, eris.Wrap(err, "cohere: rerank")
	}
	if resp == nil {
		return nil, eris.New("cohere: rerank returned empty response")
	}

	out := &RerankResponse{Results: make([]RerankResult, 0, len(resp.Results))}
	if resp.Id != nil {
		out.ID = *resp.Id
	}
	for _, r := range resp.Results {
		if r == nil {
			continue
		}
		if r.Index < 0 || r.Index >= len(req.Documents) {
			return nil, eris.Errorf("cohere: result index %d out of range", r.Index)
		}
		out.Results = append(out.Results, RerankResult{
			Index:          r.Index,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return out, nil
}
