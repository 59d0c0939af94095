package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
)

// asOf reads the optional as_of query parameter. Zero means now.
func asOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	return model.ParseTimestamp(raw)
}

// planYear reads the optional plan_year query parameter. Zero means the
// key result's own plan year.
func planYear(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("plan_year")
	if raw == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < 1 {
		return 0, fmt.Errorf("plan_year must be a positive year, got %q", raw)
	}
	return y, nil
}

// limit reads the optional limit query parameter, capped at max.
func limit(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return maxLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return min(n, maxLimit), nil
}

func quarterParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "quarter")
	q, err := strconv.Atoi(raw)
	if err != nil || q < 1 || q > 4 {
		return 0, fmt.Errorf("quarter must be 1-4, got %q", raw)
	}
	return q, nil
}

// formatterFor picks the locale from the locale query parameter, then the
// Accept-Language header, falling back to the server default.
func (s *Server) formatterFor(r *http.Request) (*progress.Formatter, error) {
	if loc := r.URL.Query().Get("locale"); loc != "" {
		return progress.NewFormatter(loc)
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 && tags[0] != language.Und {
			if f, err := progress.NewFormatter(tags[0].String()); err == nil {
				return f, nil
			}
		}
	}
	return s.formatter, nil
}
