package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// Market tags the trading market a ticker belongs to.
type Market string

const (
	MarketCNA Market = "CN_A"
	MarketHK  Market = "HK"
	MarketUS  Market = "US"
)

// Exchange names used in Identity.Exchange.
const (
	ExchangeSSE    = "SSE"
	ExchangeSZSE   = "SZSE"
	ExchangeBSE    = "BSE"
	ExchangeHKEX   = "HKEX"
	ExchangeNYSE   = "NYSE"
	ExchangeNASDAQ = "NASDAQ"
)

// Identity is the canonical form of a raw ticker string.
type Identity struct {
	Market   Market `json:"market"`
	Exchange string `json:"exchange"`
	Ticker   string `json:"ticker"`
	Raw      string `json:"raw_input"`
}

// ErrInvalidSymbol is returned when no market pattern matches the input.
var ErrInvalidSymbol = errors.New("invalid symbol")

const maxSymbolLen = 10

// Resolve classifies a raw ticker into (market, exchange, ticker).
// Rules, in order:
//   - 6 digits            -> CN_A (exchange by code prefix)
//   - digits, 5 or fewer  -> HK
//   - 1-5 letters         -> US
//
// A market suffix (".SH", ".SZ", ".BJ", ".HK", ".US") may be appended; it is
// stripped and must agree with the body. Anything else fails with
// ErrInvalidSymbol: ambiguous input is rejected, never guessed.
// Resolve is pure and idempotent over Identity.Raw.
func Resolve(raw string) (Identity, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Identity{}, fmt.Errorf("%w: empty input", ErrInvalidSymbol)
	}
	if len(s) > maxSymbolLen {
		return Identity{}, fmt.Errorf("%w: %q exceeds %d chars", ErrInvalidSymbol, raw, maxSymbolLen)
	}

	body, want := splitSuffix(s)
	if body == "" {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}

	id, ok := classify(body)
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q matches no market pattern", ErrInvalidSymbol, raw)
	}
	if want != "" && want != id.Market {
		return Identity{}, fmt.Errorf("%w: %q suffix does not match code pattern", ErrInvalidSymbol, raw)
	}
	id.Raw = s
	return id, nil
}

func splitSuffix(s string) (body string, market Market) {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		switch s[i+1:] {
		case "SH", "SZ", "BJ", "SS":
			return s[:i], MarketCNA
		case "HK":
			return s[:i], MarketHK
		case "US":
			return s[:i], MarketUS
		default:
			return "", ""
		}
	}
	return s, ""
}

func classify(body string) (Identity, bool) {
	switch {
	case isDigits(body) && len(body) == 6:
		return Identity{Market: MarketCNA, Exchange: cnExchange(body), Ticker: body}, true
	case isDigits(body) && len(body) <= 5:
		return Identity{Market: MarketHK, Exchange: ExchangeHKEX, Ticker: body}, true
	case isLetters(body) && len(body) <= 5:
		return Identity{Market: MarketUS, Exchange: usExchange(body), Ticker: body}, true
	}
	return Identity{}, false
}

// cnExchange maps a 6-digit A-share code to its exchange by prefix,
// following the mainland listing code ranges.
func cnExchange(code string) string {
	switch {
	case strings.HasPrefix(code, "60"), strings.HasPrefix(code, "68"), strings.HasPrefix(code, "90"):
		return ExchangeSSE
	case strings.HasPrefix(code, "00"), strings.HasPrefix(code, "30"), strings.HasPrefix(code, "20"):
		return ExchangeSZSE
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"):
		return ExchangeBSE
	}
	return ExchangeSZSE
}

// usExchange guesses the listing venue by ticker length; 4+ letter tickers
// are overwhelmingly NASDAQ listings.
func usExchange(ticker string) string {
	if len(ticker) >= 4 {
		return ExchangeNASDAQ
	}
	return ExchangeNYSE
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
