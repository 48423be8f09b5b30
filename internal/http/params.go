package http

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

const dateLayout = "2006-01-02"

// amount accepts a JSON integer or a string such as "1,250,000".
type amount int64

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return core.InvalidField("amount", "must be a positive whole number")
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = amount(v)
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return core.InvalidField("amount", "must be a positive whole number")
	}
	*a = amount(v)
	return nil
}

// optional distinguishes an absent field from an explicit null.
type optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(bytes.TrimSpace(b)) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// ptr returns the value when it was set to something other than null.
func (o optional[T]) ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

// parseTime accepts RFC3339 or a bare date, which is midnight in loc. With
// endOfDay a bare date instead means the last millisecond of that day.
func parseTime(field, s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, core.InvalidField(field, "must be RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		return d.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	}
	return d, nil
}

func parseOptionalTime(field, s string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseTime(field, s, loc, endOfDay)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseTransactionFilter reads kind, categoryId, from, to, q, limit and sort.
func parseTransactionFilter(q url.Values, loc *time.Location) (core.TransactionFilter, error) {
	var f core.TransactionFilter
	var err error

	if v := strings.TrimSpace(q.Get("kind")); v != "" {
		if f.Kind, err = core.ParseKind(v); err != nil {
			return f, err
		}
	}
	f.CategoryID = strings.TrimSpace(q.Get("categoryId"))
	if f.From, err = parseOptionalTime("from", q.Get("from"), loc, false); err != nil {
		return f, err
	}
	if f.To, err = parseOptionalTime("to", q.Get("to"), loc, true); err != nil {
		return f, err
	}
	f.Query = strings.TrimSpace(q.Get("q"))

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, core.InvalidField("limit", "must be a positive integer")
		}
		f.Limit = n
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("sort"))) {
	case "", "desc":
		f.Sort = core.SortDesc
	case "asc":
		f.Sort = core.SortAsc
	default:
		return f, core.InvalidField("sort", "must be asc or desc")
	}
	return f, nil
}
