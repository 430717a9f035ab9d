package yfinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"stockdata/internal/provider"
)

// ChartResponse is the /v8/finance/chart payload, trimmed to what we read.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *APIError     `json:"error"`
	} `json:"chart"`
}

type ChartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []float64 `json:"open"`
			High   []float64 `json:"high"`
			Low    []float64 `json:"low"`
			Close  []float64 `json:"close"`
			Volume []int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// APIError is Yahoo's embedded error object.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GetChart fetches daily candles for symbol between period1 and period2
// (unix seconds). period2 <= 0 means "now".
func (c *Client) GetChart(ctx context.Context, symbol string, period1, period2 int64) (*ChartResult, error) {
	q := url.Values{"interval": {"1d"}, "events": {"div,splits"}}
	if period1 > 0 {
		q.Set("period1", strconv.FormatInt(period1, 10))
	}
	if period2 > 0 {
		q.Set("period2", strconv.FormatInt(period2, 10))
	} else {
		q.Set("range", "1mo")
	}

	var body ChartResponse
	if err := c.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &body); err != nil {
		return nil, err
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("%w: chart %s: %s %s", provider.ErrUpstream, symbol, body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: chart %s: empty result", provider.ErrUpstream, symbol)
	}
	return &body.Chart.Result[0], nil
}

// getJSON performs one GET against the query API and decodes the body,
// classifying transport failures onto the adapter error taxonomy.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	for key, values := range c.query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: GET %s: %s", provider.ErrTimeout, path, err)
		}
		return fmt.Errorf("%w: GET %s: %s", provider.ErrUpstream, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: GET %s -> 429", provider.ErrRateLimited, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return fmt.Errorf("%w: GET %s -> %d: %s", provider.ErrUpstream, path, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %s", provider.ErrUpstream, path, err)
	}
	return nil
}
