package http

import (
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// summaryResponse echoes the resolved range so clients relying on the
// default bounds can see what they got.
type summaryResponse struct {
	From      core.Period          `json:"from"`
	To        core.Period          `json:"to"`
	Summaries []core.PeriodSummary `json:"summaries"`
}

type seriesResponse struct {
	Metric   string             `json:"metric"`
	Category string             `json:"category,omitempty"`
	Points   []core.SeriesPoint `json:"points"`
}

type balanceResponse struct {
	Balance core.Money `json:"balanceCents"`
}

// handleSummary returns one aggregate per month of the requested range.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.cachedJSON(w, r, func() (any, *JSONResponseBuilder) {
		rng, err := ParsePeriodRange(r.URL.Query(), time.Now())
		if err != nil {
			return nil, DomainError(err)
		}

		summaries, err := s.engine.GetSummary(r.Context(), rng)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Summary query failed",
				log.FieldError, err,
				log.FieldOperation, log.OpSummarize,
				log.FieldPeriodFrom, rng.From.String(),
				log.FieldPeriodTo, rng.To.String())
			return nil, DomainError(err)
		}

		return summaryResponse{From: rng.From, To: rng.To, Summaries: summaries}, nil
	})
}

// handleSeries returns a chart series for one metric, optionally narrowed
// to a single category.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.cachedJSON(w, r, func() (any, *JSONResponseBuilder) {
		query := r.URL.Query()

		rng, err := ParsePeriodRange(query, time.Now())
		if err != nil {
			return nil, DomainError(err)
		}
		metric, err := ParseMetricParam(query)
		if err != nil {
			return nil, DomainError(err)
		}

		category := ParseCategoryParam(query)

		var points []core.SeriesPoint
		if category != "" {
			points, err = s.engine.GetCategorySeries(r.Context(), rng, category, metric)
		} else {
			points, err = s.engine.GetChartSeries(r.Context(), rng, metric)
		}
		if err != nil {
			return nil, DomainError(err)
		}

		return seriesResponse{Metric: metric.String(), Category: category, Points: points}, nil
	})
}

// handleForecast extrapolates a metric series beyond the observed range.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.cachedJSON(w, r, func() (any, *JSONResponseBuilder) {
		query := r.URL.Query()

		rng, err := ParsePeriodRange(query, time.Now())
		if err != nil {
			return nil, DomainError(err)
		}
		metric, err := ParseMetricParam(query)
		if err != nil {
			return nil, DomainError(err)
		}
		horizon, err := ParseHorizonParam(query)
		if err != nil {
			return nil, DomainError(err)
		}

		prediction, err := s.engine.GetForecast(r.Context(), rng, metric, horizon)
		if err != nil {
			s.logger.WarnContext(r.Context(), "Forecast query failed",
				log.FieldError, err,
				log.FieldOperation, log.OpForecast,
				log.FieldMetric, metric.String(),
				log.FieldHorizon, horizon)
			return nil, DomainError(err)
		}

		return prediction, nil
	})
}

// handleBalance serves the bank balance: GET reads, PUT replaces.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.cachedJSON(w, r, func() (any, *JSONResponseBuilder) {
			balance, err := s.backend.GetBalance(r.Context())
			if err != nil {
				return nil, DomainError(err)
			}
			return balanceResponse{Balance: balance}, nil
		})
	case http.MethodPut:
		balance, err := DecodeBalancePayload(r)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		if err := s.backend.SetBalance(r.Context(), balance); err != nil {
			DomainError(err).Write(w)
			return
		}

		s.invalidateCache()
		s.logger.InfoContext(r.Context(), "Balance updated",
			log.FieldAmountCents, balance.Cents)

		NewJSONResponse().Payload(balanceResponse{Balance: balance}).Write(w)
	default:
		MethodNotAllowedError("GET, PUT").Write(w)
	}
}

// handleOutlook projects the bank balance forward using the net forecast.
func (s *Server) handleOutlook(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.cachedJSON(w, r, func() (any, *JSONResponseBuilder) {
		query := r.URL.Query()

		rng, err := ParsePeriodRange(query, time.Now())
		if err != nil {
			return nil, DomainError(err)
		}
		horizon, err := ParseHorizonParam(query)
		if err != nil {
			return nil, DomainError(err)
		}

		outlook, err := s.engine.GetOutlook(r.Context(), rng, horizon)
		if err != nil {
			return nil, DomainError(err)
		}

		return outlook, nil
	})
}
