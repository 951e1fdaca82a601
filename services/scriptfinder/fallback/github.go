// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultGitHubBaseURL is the public GitHub REST endpoint.
	DefaultGitHubBaseURL = "https://api.github.com"

	// DefaultPerPage is how many search hits are requested.
	DefaultPerPage = 5

	// DefaultRequestsPerMinute matches GitHub's code-search quota for
	// authenticated clients.
	DefaultRequestsPerMinute = 10

	// textMatchAccept asks GitHub for text-match metadata.
	textMatchAccept = "application/vnd.github.text-match+json"

	// searchQualifiers restricts hits to Lua files that fetch remote code.
	searchQualifiers = "+loadstring+game%3AHttpGet+language%3Alua"

	// maxSearchBody bounds how much of a search response is read.
	maxSearchBody = 4 << 20
)

var blobURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/blob/(.+)$`)

// GitHubConfig configures a GitHubSource.
type GitHubConfig struct {
	// BaseURL defaults to DefaultGitHubBaseURL.
	BaseURL string

	// Token is an optional personal access token. It is moved into a sealed
	// enclave by NewGitHubSource and wiped from this slice.
	Token []byte

	// PerPage defaults to DefaultPerPage.
	PerPage int

	// RequestsPerMinute paces outbound calls. Zero means
	// DefaultRequestsPerMinute; negative disables pacing.
	RequestsPerMinute int

	// Timeout bounds a single search, rate limiter wait included. Zero
	// means 10s.
	Timeout time.Duration

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
}

// GitHubSource searches GitHub code search for Lua loaders.
//
// Thread Safety: Safe for concurrent use. Identical concurrent queries share
// one upstream call.
type GitHubSource struct {
	baseURL string
	perPage int
	token   *memguard.Enclave
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
}

// NewGitHubSource creates a GitHubSource with defaults applied.
func NewGitHubSource(cfg GitHubConfig) *GitHubSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGitHubBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	switch {
	case cfg.RequestsPerMinute == 0:
		limiter = rate.NewLimiter(rate.Every(time.Minute/DefaultRequestsPerMinute), 1)
	case cfg.RequestsPerMinute > 0:
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	s := &GitHubSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		perPage: cfg.PerPage,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		limiter: limiter,
	}
	if len(cfg.Token) > 0 {
		s.token = memguard.NewEnclave(cfg.Token)
	}
	return s
}

type codeSearchResponse struct {
	TotalCount int              `json:"total_count"`
	Items      []codeSearchItem `json:"items"`
}

type codeSearchItem struct {
	HTMLURL string `json:"html_url"`
}

// Search runs a code search for query.
//
// Description:
//
//	Whitespace-separated query terms are joined with the search qualifiers
//	and the first hit is turned into a loadstring line. Anything other than
//	a 200 response is ErrUnavailable; a 200 with no items is (nil, nil).
//
//	The upstream call is shared by identical concurrent queries, so it runs
//	detached from any one caller's cancellation and is bounded by the
//	configured timeout (rate limiter wait included). Each caller stops
//	waiting when its own ctx is done.
//
// Inputs:
//
//	ctx - Context for cancellation and pacing.
//	query - Raw user query.
//
// Outputs:
//
//	*Result - The first hit, or nil.
//	error - Wraps ErrUnavailable on transport, status or decode failure.
func (s *GitHubSource) Search(ctx context.Context, query string) (*Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	ch := s.group.DoChan(queryKey(query), func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.search(flightCtx, terms)
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case r = <-ch:
	}
	if r.Shared {
		slog.Debug("fallback search shared with in-flight call", slog.String("query", query))
	}
	if r.Err != nil {
		return nil, r.Err
	}
	res, _ := r.Val.(*Result)
	if res == nil {
		return nil, nil
	}
	out := *res
	return &out, nil
}

func (s *GitHubSource) search(ctx context.Context, terms []string) (res *Result, err error) {
	ctx, span := otel.Tracer(fallbackTracerName).Start(ctx, "fallback.GitHubSource.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("terms", len(terms)))

	start := time.Now()
	defer func() {
		recordSearch("github", time.Since(start), res != nil, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search failed")
		}
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL(terms), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", textMatchAccept)
	if s.token != nil {
		buf, err := s.token.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening token enclave: %v", ErrUnavailable, err)
		}
		req.Header.Set("Authorization", "token "+buf.String())
		buf.Destroy()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: github returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body codeSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSearchBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if body.TotalCount == 0 {
		return nil, nil
	}

	for _, item := range body.Items {
		if item.HTMLURL == "" {
			continue
		}
		raw := RawURL(item.HTMLURL)
		return &Result{
			Script:  LoaderScript(raw),
			RawURL:  raw,
			HTMLURL: item.HTMLURL,
		}, nil
	}
	return nil, nil
}

func (s *GitHubSource) searchURL(terms []string) string {
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = url.QueryEscape(t)
	}
	return fmt.Sprintf("%s/search/code?q=%s%s&per_page=%d",
		s.baseURL, strings.Join(escaped, "+"), searchQualifiers, s.perPage)
}

// RawURL rewrites a github.com blob page URL to its raw.githubusercontent.com
// file URL. Other URLs are returned unchanged.
func RawURL(htmlURL string) string {
	return blobURLPattern.ReplaceAllString(htmlURL, "https://raw.githubusercontent.com/$1/$2/$3")
}

// LoaderScript wraps a raw URL in a loadstring(HttpGet) call.
func LoaderScript(rawURL string) string {
	return fmt.Sprintf(`loadstring(game:HttpGet("%s"))()`, rawURL)
}
