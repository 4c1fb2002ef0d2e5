package feed

import (
	"math"
	"testing"

	"github.com/nerrad567/sensorhub/internal/apperr"
)

func TestListOptions_Normalise(t *testing.T) {
	tests := []struct {
		name       string
		in         ListOptions
		wantOpts   ListOptions
		wantParams ListParams
	}{
		{
			name:       "defaults",
			in:         ListOptions{},
			wantOpts:   ListOptions{Page: 1, Size: 10, SortBy: "createdAt", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "created_at", Offset: 0, Limit: 10},
		},
		{
			name:       "negative values fall back",
			in:         ListOptions{Page: -3, Size: -1},
			wantOpts:   ListOptions{Page: 1, Size: 10, SortBy: "createdAt", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "created_at", Offset: 0, Limit: 10},
		},
		{
			name:       "second page",
			in:         ListOptions{Page: 2, Size: 10},
			wantOpts:   ListOptions{Page: 2, Size: 10, SortBy: "createdAt", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "created_at", Offset: 10, Limit: 10},
		},
		{
			name:       "desc any case",
			in:         ListOptions{SortBy: "temperature", OrderBy: "DeSc"},
			wantOpts:   ListOptions{Page: 1, Size: 10, SortBy: "temperature", OrderBy: "desc"},
			wantParams: ListParams{SortColumn: "temperature", Descending: true, Limit: 10},
		},
		{
			name:       "unknown order is ascending",
			in:         ListOptions{OrderBy: "sideways"},
			wantOpts:   ListOptions{Page: 1, Size: 10, SortBy: "createdAt", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "created_at", Limit: 10},
		},
		{
			name:       "snake case sort key",
			in:         ListOptions{SortBy: "humidity_threshold"},
			wantOpts:   ListOptions{Page: 1, Size: 10, SortBy: "humidity_threshold", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "humidity_threshold", Limit: 10},
		},
		{
			name:       "size capped",
			in:         ListOptions{Page: 3, Size: 1000},
			wantOpts:   ListOptions{Page: 3, Size: 100, SortBy: "createdAt", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "created_at", Offset: 200, Limit: 100},
		},
		{
			name:       "huge page clamped",
			in:         ListOptions{Page: math.MaxInt, Size: 100},
			wantOpts:   ListOptions{Page: maxPage, Size: 100, SortBy: "createdAt", OrderBy: "asc"},
			wantParams: ListParams{SortColumn: "created_at", Offset: (maxPage - 1) * 100, Limit: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, params, err := tt.in.normalise()
			if err != nil {
				t.Fatalf("normalise() error = %v", err)
			}
			if opts != tt.wantOpts {
				t.Errorf("opts = %+v, want %+v", opts, tt.wantOpts)
			}
			if params != tt.wantParams {
				t.Errorf("params = %+v, want %+v", params, tt.wantParams)
			}
		})
	}
}

func TestListOptions_RejectsUnknownSortKey(t *testing.T) {
	for _, key := range []string{"password", "created_at; DROP TABLE feeds", "channel_id"} {
		_, _, err := ListOptions{SortBy: key}.normalise()
		if apperr.KindOf(err) != apperr.KindInvalidInput {
			t.Errorf("normalise(%q) kind = %v, want InvalidInput", key, apperr.KindOf(err))
		}
	}
}

func TestListOptions_HugePageDoesNotOverflow(t *testing.T) {
	_, params, err := ListOptions{Page: math.MaxInt, Size: 10}.normalise()
	if err != nil {
		t.Fatalf("normalise() error = %v", err)
	}
	if params.Offset < 0 {
		t.Errorf("Offset = %d, want non-negative", params.Offset)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{100, 100, 1},
	}
	for _, tt := range tests {
		if got := totalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
