package yfinance

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"stockdata/internal/provider"
)

// FmtValue is Yahoo's formatted-number wrapper; only the raw value matters.
type FmtValue struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}

// QuoteSummaryResponse trims /v10/finance/quoteSummary to the two modules we ask for.
type QuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []QuoteSummaryResult `json:"result"`
		Error  *APIError            `json:"error"`
	} `json:"quoteSummary"`
}

type QuoteSummaryResult struct {
	SummaryDetail struct {
		TrailingPE   *FmtValue `json:"trailingPE"`
		ForwardPE    *FmtValue `json:"forwardPE"`
		MarketCap    *FmtValue `json:"marketCap"`
		DividendRate *FmtValue `json:"dividendRate"`
		PriceToBook  *FmtValue `json:"priceToBook"`
	} `json:"summaryDetail"`
	DefaultKeyStatistics struct {
		TrailingEps     *FmtValue `json:"trailingEps"`
		ForwardEps      *FmtValue `json:"forwardEps"`
		PegRatio        *FmtValue `json:"pegRatio"`
		BookValue       *FmtValue `json:"bookValue"`
		PriceToBook     *FmtValue `json:"priceToBook"`
		EnterpriseValue *FmtValue `json:"enterpriseValue"`
	} `json:"defaultKeyStatistics"`
}

// GetQuoteSummary fetches valuation statistics for one symbol.
func (c *Client) GetQuoteSummary(ctx context.Context, symbol string, modules []string) (*QuoteSummaryResult, error) {
	if len(modules) == 0 {
		modules = []string{"summaryDetail", "defaultKeyStatistics"}
	}
	q := url.Values{"modules": {strings.Join(modules, ",")}}
	var body QuoteSummaryResponse
	if err := c.getJSON(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), q, &body); err != nil {
		return nil, err
	}
	if body.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: quoteSummary %s: %s %s", provider.ErrUpstream, symbol,
			body.QuoteSummary.Error.Code, body.QuoteSummary.Error.Description)
	}
	if len(body.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: quoteSummary %s: empty result", provider.ErrUpstream, symbol)
	}
	return &body.QuoteSummary.Result[0], nil
}

// SearchResponse trims /v1/finance/search to the news block.
type SearchResponse struct {
	News []SearchNews `json:"news"`
}

type SearchNews struct {
	Title               string `json:"title"`
	Publisher           string `json:"publisher"`
	Link                string `json:"link"`
	ProviderPublishTime int64  `json:"providerPublishTime"`
}

// GetNews fetches recent headlines mentioning the symbol.
func (c *Client) GetNews(ctx context.Context, symbol string, count int) ([]SearchNews, error) {
	if count <= 0 {
		count = 10
	}
	q := url.Values{
		"q":           {symbol},
		"newsCount":   {fmt.Sprintf("%d", count)},
		"quotesCount": {"0"},
	}
	var body SearchResponse
	if err := c.getJSON(ctx, "/v1/finance/search", q, &body); err != nil {
		return nil, err
	}
	return body.News, nil
}
