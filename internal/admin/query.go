package admin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/shopspring/decimal"
)

// ProductQuery lists products. Nil and empty fields do not filter.
type ProductQuery struct {
	Category      string
	Active        *bool
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          Page
}

type AuditQuery struct {
	Actor  string
	Action string
	Entity string
	Since  *time.Time
	Until  *time.Time
	Page   Page
}

type Page struct {
	Cursor    string
	Direction listing.Direction
	PageSize  int
}

func (q ProductQuery) Filters() []listing.Filter {
	var f []listing.Filter
	if q.Category != "" {
		f = append(f, listing.Eq("category", q.Category))
	}
	if q.Active != nil {
		f = append(f, listing.Eq("active", *q.Active))
	}
	if q.MinPrice != nil {
		f = append(f, listing.AtLeast("price", *q.MinPrice))
	}
	if q.MaxPrice != nil {
		f = append(f, listing.AtMost("price", *q.MaxPrice))
	}
	if q.CreatedAfter != nil {
		f = append(f, listing.AtLeast(listing.SortField, *q.CreatedAfter))
	}
	if q.CreatedBefore != nil {
		f = append(f, listing.AtMost(listing.SortField, *q.CreatedBefore))
	}
	return f
}

func (q AuditQuery) Filters() []listing.Filter {
	var f []listing.Filter
	if q.Actor != "" {
		f = append(f, listing.Eq("actor", q.Actor))
	}
	if q.Action != "" {
		f = append(f, listing.Eq("action", q.Action))
	}
	if q.Entity != "" {
		f = append(f, listing.Eq("entity", q.Entity))
	}
	if q.Since != nil {
		f = append(f, listing.AtLeast(listing.SortField, *q.Since))
	}
	if q.Until != nil {
		f = append(f, listing.AtMost(listing.SortField, *q.Until))
	}
	return f
}

// ParseProductQuery reads category, active, min_price, max_price,
// created_after, created_before, cursor, direction and page_size.
func ParseProductQuery(v url.Values) (ProductQuery, error) {
	var q ProductQuery
	var err error
	q.Category = strings.TrimSpace(v.Get("category"))
	if q.Active, err = parseBool(v, "active"); err != nil {
		return q, err
	}
	if q.MinPrice, err = parseDecimal(v, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = parseDecimal(v, "max_price"); err != nil {
		return q, err
	}
	if q.CreatedAfter, err = parseTime(v, "created_after"); err != nil {
		return q, err
	}
	if q.CreatedBefore, err = parseTime(v, "created_before"); err != nil {
		return q, err
	}
	q.Page, err = parsePage(v)
	return q, err
}

// ParseAuditQuery reads actor, action, entity, since, until, cursor,
// direction and page_size.
func ParseAuditQuery(v url.Values) (AuditQuery, error) {
	var q AuditQuery
	var err error
	q.Actor = strings.TrimSpace(v.Get("actor"))
	q.Action = strings.TrimSpace(v.Get("action"))
	q.Entity = strings.TrimSpace(v.Get("entity"))
	if q.Since, err = parseTime(v, "since"); err != nil {
		return q, err
	}
	if q.Until, err = parseTime(v, "until"); err != nil {
		return q, err
	}
	q.Page, err = parsePage(v)
	return q, err
}

func parsePage(v url.Values) (Page, error) {
	p := Page{Cursor: strings.TrimSpace(v.Get("cursor"))}
	dir, err := listing.ParseDirection(v.Get("direction"))
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	p.Direction = dir
	if s := v.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("%w: page_size must be a positive integer", ErrInvalidQuery)
		}
		p.PageSize = n
	}
	return p, nil
}

func parseBool(v url.Values, key string) (*bool, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", ErrInvalidQuery, key)
	}
	return &b, nil
}

func parseDecimal(v url.Values, key string) (*decimal.Decimal, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidQuery, key)
	}
	return &d, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(v url.Values, key string) (*time.Time, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", ErrInvalidQuery, key)
}
