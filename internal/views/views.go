// Package views defines the four dashboard views, their optional filters and
// the query builder that turns a selection into a parameterized statement.
package views

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type View string

const (
	ProductionLines  View = "production-lines"
	MachineLogs      View = "machine-logs"
	FailureIncidents View = "failure-incidents"
	ProductDimension View = "product-dimension"
)

var ErrUnknownView = errors.New("unknown view")

// Info carries the labels the dashboard shows for a view.
type Info struct {
	View           View     `json:"view"`
	Title          string   `json:"title"`
	InsightLabel   string   `json:"insight_label"`
	InsightHeading string   `json:"insight_heading"`
	Filters        []string `json:"filters"`
}

const (
	FilterLineID   = "line_id"
	FilterResolved = "resolved"
	FilterSearch   = "search"
)

var catalog = []Info{
	{
		View:           ProductionLines,
		Title:          "Production Lines",
		InsightLabel:   "Generate GPT Suggestions",
		InsightHeading: "GPT Suggestions",
		Filters:        []string{},
	},
	{
		View:           MachineLogs,
		Title:          "Machine Logs",
		InsightLabel:   "Analyze with GPT",
		InsightHeading: "GPT Analysis",
		Filters:        []string{FilterLineID},
	},
	{
		View:           FailureIncidents,
		Title:          "Failure Incidents",
		InsightLabel:   "Get GPT Insights",
		InsightHeading: "GPT Insights",
		Filters:        []string{FilterResolved, FilterSearch},
	},
	{
		View:           ProductDimension,
		Title:          "Product Dimension",
		InsightLabel:   "Analyze Products with GPT",
		InsightHeading: "GPT Product Insights",
		Filters:        []string{},
	},
}

// All returns the views in selector order.
func All() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Parse accepts a slug ("machine-logs") or a title ("Machine Logs").
func Parse(raw string) (View, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, info := range catalog {
		if normalized == string(info.View) || normalized == strings.ToLower(info.Title) {
			return info.View, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, raw)
}

func (v View) Info() Info {
	for _, info := range catalog {
		if info.View == v {
			return info
		}
	}
	return Info{View: v, Title: string(v)}
}

func (v View) Valid() bool {
	for _, info := range catalog {
		if info.View == v {
			return true
		}
	}
	return false
}

func (v View) String() string {
	return string(v)
}

// Filters holds the optional, view-specific filter values. A nil pointer or
// an empty search string means "no filter".
type Filters struct {
	LineID   *int64
	Resolved *bool
	Search   string
}

var ErrInvalidFilter = errors.New("invalid filter")

// MaxLineID is the highest line id offered by the line selector.
const MaxLineID = 10

// LineIDOptions returns the selectable line ids, 1 through MaxLineID.
func LineIDOptions() []int64 {
	out := make([]int64, 0, MaxLineID)
	for id := int64(1); id <= MaxLineID; id++ {
		out = append(out, id)
	}
	return out
}

// ParseLineID coerces an optional line id. Empty input is no filter.
func ParseLineID(raw string) (*int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "none") {
		return nil, nil
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: line_id %q is not an integer", ErrInvalidFilter, raw)
	}
	return &value, nil
}

// ParseResolved coerces the resolved tri-state: "", "all", "true", "false".
func ParseResolved(raw string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return nil, nil
	case "true":
		value := true
		return &value, nil
	case "false":
		value := false
		return &value, nil
	default:
		return nil, fmt.Errorf("%w: resolved must be all, true or false, got %q", ErrInvalidFilter, raw)
	}
}
