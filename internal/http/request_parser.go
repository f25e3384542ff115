// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data. It consolidates the repeated patterns of period range, metric and
// horizon extraction from query strings and entry decoding from JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
)

// maxBodyBytes bounds JSON request bodies; ledger payloads are tiny.
const maxBodyBytes = 1 << 20

// defaultHorizon is used when a forecast request omits the horizon.
const defaultHorizon = 3

// ParsePeriodRange extracts the [from, to] month range from query
// parameters. Both bounds take strict YYYY-MM values; when omitted, to
// defaults to the current month and from to eleven months before to.
func ParsePeriodRange(query url.Values, now time.Time) (core.PeriodRange, error) {
	to := core.Period{Year: now.Year(), Month: now.Month()}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		p, err := core.ParsePeriod(v)
		if err != nil {
			return core.PeriodRange{}, err
		}
		to = p
	}

	start := time.Date(to.Year, to.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	from := core.Period{Year: start.Year(), Month: start.Month()}
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		p, err := core.ParsePeriod(v)
		if err != nil {
			return core.PeriodRange{}, err
		}
		from = p
	}

	return core.NewPeriodRange(from, to)
}

// ParseMetricParam extracts the series metric, defaulting to net.
func ParseMetricParam(query url.Values) (core.Metric, error) {
	v := strings.TrimSpace(query.Get("metric"))
	if v == "" {
		return core.MetricNet, nil
	}
	return core.ParseMetric(v)
}

// ParseHorizonParam extracts the forecast horizon in months.
func ParseHorizonParam(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("horizon"))
	if v == "" {
		return defaultHorizon, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidHorizon, v)
	}
	return h, nil
}

// ParseCategoryParam extracts the optional category filter.
func ParseCategoryParam(query url.Values) string {
	return sanitizeInput(query.Get("category"))
}

// DecodeEntryPayload reads one entry from a JSON request body. Field
// validation stays with the ledger; this only rejects malformed JSON.
func DecodeEntryPayload(r *http.Request) (core.Entry, error) {
	var e core.Entry
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&e); err != nil {
		return core.Entry{}, fmt.Errorf("decode entry payload: %w", err)
	}
	e.Category = sanitizeInput(e.Category)
	e.Note = sanitizeInput(e.Note)
	return e, nil
}

// DecodeBalancePayload reads {"balanceCents": n} from a JSON request body.
func DecodeBalancePayload(r *http.Request) (core.Money, error) {
	var payload struct {
		Balance core.Money `json:"balanceCents"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return core.Money{}, fmt.Errorf("decode balance payload: %w", err)
	}
	return payload.Balance, nil
}

// ParseEntryID extracts the numeric id from paths like /api/entries/42.
func ParseEntryID(path, prefix string) (int64, error) {
	raw := strings.TrimPrefix(path, prefix)
	raw = strings.Trim(raw, "/")
	if raw == "" || strings.Contains(raw, "/") {
		return 0, errors.New("missing entry id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", raw)
	}
	return id, nil
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
