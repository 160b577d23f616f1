package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/metflix/server/internal/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	requestTimeout = 10 * time.Second
	fanOutLimit    = 8
)

// ErrNotFound is returned by GetByID when the provider answers Response=False
var ErrNotFound = errors.New("movie not found")

// SearchResult is the uniform search outcome. Failures of any kind come back
// as Response "False" with Error set instead of a Go error.
type SearchResult struct {
	Search       []model.Movie `json:"Search,omitempty"`
	TotalResults string        `json:"totalResults,omitempty"`
	Response     string        `json:"Response"`
	Error        string        `json:"Error,omitempty"`
}

// OK reports whether the provider returned matches
func (r SearchResult) OK() bool {
	return r.Response == "True"
}

type detailResponse struct {
	model.Movie
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Client is a thin client over the OMDB HTTP API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new OMDB client. Every request is bounded by a 10s
// timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Search queries the provider by title. It never returns an error.
func (c *Client) Search(ctx context.Context, query string, page int) SearchResult {
	if page < 1 {
		page = 1
	}
	var res SearchResult
	err := c.get(ctx, url.Values{
		"s":    {query},
		"page": {strconv.Itoa(page)},
	}, &res)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("query", query).Int("page", page).Msg("omdb search failed")
		return SearchResult{Response: "False", Error: err.Error()}
	}
	if res.Response == "" {
		res.Response = "False"
	}
	if !res.OK() && res.Error == "" {
		res.Error = "Movie not found!"
	}
	return res
}

// GetByID fetches one title by imdb id
func (c *Client) GetByID(ctx context.Context, imdbID string) (model.Movie, error) {
	var res detailResponse
	if err := c.get(ctx, url.Values{"i": {imdbID}}, &res); err != nil {
		return model.Movie{}, err
	}
	if res.Response != "True" {
		return model.Movie{}, fmt.Errorf("%w: %s: %s", ErrNotFound, imdbID, res.Error)
	}
	return res.Movie, nil
}

// GetMany fetches ids concurrently and returns the successful lookups in
// input order. Individual failures are logged and dropped.
func (c *Client) GetMany(ctx context.Context, ids []string) []model.Movie {
	if len(ids) == 0 {
		return []model.Movie{}
	}

	found := make([]*model.Movie, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, id := range ids {
		g.Go(func() error {
			m, err := c.GetByID(gctx, id)
			if err != nil {
				log.Ctx(ctx).Debug().Err(err).Str("imdbID", id).Msg("omdb lookup dropped")
				return nil
			}
			found[i] = &m
			return nil
		})
	}
	_ = g.Wait()

	movies := make([]model.Movie, 0, len(ids))
	for _, m := range found {
		if m != nil {
			movies = append(movies, *m)
		}
	}
	return movies
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request omdb: %w", err)
	}
	defer resp.Body.Close()

	// OMDB reports some failures (bad key, limits) as a JSON body on a
	// non-200 status; that body carries the message.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("omdb returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode omdb response: %w", err)
	}
	return nil
}
