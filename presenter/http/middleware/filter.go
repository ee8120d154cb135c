package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/presenter/http/render"
)

type ctxKey int

const (
	filterCtxKey ctxKey = iota
)

const maxPageSize = 1000

// GetFilterMiddleware parses the history query parameters:
// status (comma separated), chain, since (RFC3339), limit and offset.
func GetFilterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			render.Error(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), filterCtxKey, filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseFilter(r *http.Request) (*entity.TransactionFilter, error) {
	query := r.URL.Query()
	filter := &entity.TransactionFilter{
		Chain: query.Get("chain"),
	}

	if statuses := query.Get("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			status := entity.Status(strings.ToUpper(strings.TrimSpace(s)))
			if !status.Valid() {
				return nil, fmt.Errorf("%w: unknown status %q", render.ErrBadRequest, s)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	if since := query.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse since: %s", render.ErrBadRequest, err)
		}
		filter.CreatedAfter = &ts
	}

	var err error
	if filter.Limit, err = parseUint(query.Get("limit")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse limit: %s", render.ErrBadRequest, err)
	}
	if filter.Limit > maxPageSize {
		return nil, fmt.Errorf("%w: cannot request more than %d transactions", render.ErrBadRequest, maxPageSize)
	}
	if filter.Offset, err = parseUint(query.Get("offset")); err != nil {
		return nil, fmt.Errorf("%w: failed to parse offset: %s", render.ErrBadRequest, err)
	}
	return filter, nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func GetFilterContext(ctx context.Context) *entity.TransactionFilter {
	if filter, ok := ctx.Value(filterCtxKey).(*entity.TransactionFilter); ok {
		return filter
	}
	return new(entity.TransactionFilter)
}
