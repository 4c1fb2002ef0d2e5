package feed

import (
	"math"
	"strings"

	"github.com/nerrad567/sensorhub/internal/apperr"
)

const (
	defaultPage    = 1
	defaultSize    = 10
	maxSize        = 100
	defaultSortBy  = "createdAt"
	orderAscending = "asc"
	orderDesc      = "desc"

	// maxPage keeps (page-1)*size within an int.
	maxPage = math.MaxInt / maxSize
)

// sortColumns maps accepted sort keys to columns. Both camelCase and
// snake_case spellings are accepted.
var sortColumns = map[string]string{
	"createdAt":             "created_at",
	"created_at":            "created_at",
	"updatedAt":             "updated_at",
	"updated_at":            "updated_at",
	"temperature":           "temperature",
	"humidity":              "humidity",
	"temperatureThreshold":  "temperature_threshold",
	"temperature_threshold": "temperature_threshold",
	"humidityThreshold":     "humidity_threshold",
	"humidity_threshold":    "humidity_threshold",
	"seq":                   "seq",
}

// ListOptions is a caller page request. Zero values select defaults.
type ListOptions struct {
	Page    int
	Size    int
	SortBy  string
	OrderBy string
}

// Pagination describes the page returned and the whole result set.
type Pagination struct {
	TotalDocuments int    `json:"total_documents"`
	TotalPages     int    `json:"total_pages"`
	Page           int    `json:"page"`
	Size           int    `json:"size"`
	SortBy         string `json:"sort_by"`
	OrderBy        string `json:"order_by"`
}

// Page is one page of populated feeds.
type Page struct {
	Items      []Populated `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// normalise applies defaults and validates opts. "desc" in any case sorts
// descending, anything else ascending. Size is capped at maxSize and page
// at maxPage.
func (o ListOptions) normalise() (ListOptions, ListParams, error) {
	if o.Page <= 0 {
		o.Page = defaultPage
	}
	if o.Size <= 0 {
		o.Size = defaultSize
	}
	if o.Size > maxSize {
		o.Size = maxSize
	}
	if o.Page > maxPage {
		o.Page = maxPage
	}
	if o.SortBy == "" {
		o.SortBy = defaultSortBy
	}

	column, ok := sortColumns[o.SortBy]
	if !ok {
		return o, ListParams{}, apperr.InvalidInput("cannot sort by %q", o.SortBy)
	}

	desc := strings.EqualFold(o.OrderBy, orderDesc)
	if desc {
		o.OrderBy = orderDesc
	} else {
		o.OrderBy = orderAscending
	}

	return o, ListParams{
		SortColumn: column,
		Descending: desc,
		Offset:     (o.Page - 1) * o.Size,
		Limit:      o.Size,
	}, nil
}

// totalPages is ceil(total/size).
func totalPages(total, size int) int {
	if total == 0 {
		return 0
	}
	return (total + size - 1) / size
}
