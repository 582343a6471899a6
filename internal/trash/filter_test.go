package trash

import (
	"slices"
	"testing"
	"time"

	"github.com/babarot/stowage/internal/core/types"
)

var filterNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// createTestEntries generates a slice of entries for various filter scenarios
func createTestEntries() []types.TrashEntry {
	return []types.TrashEntry{
		{Name: "file1.txt", OriginalPath: "a/file1.txt", Type: types.ItemFile, Size: 100, TrashedAt: filterNow.Add(-24 * time.Hour)},
		{Name: "file2.log", OriginalPath: "a/file2.log", Type: types.ItemFile, Size: 1024, TrashedAt: filterNow.Add(-48 * time.Hour)},
		{Name: "important.txt", OriginalPath: "important.txt", Type: types.ItemFile, Size: 10240, TrashedAt: filterNow.Add(-72 * time.Hour)},
		{Name: "photos", OriginalPath: "photos", Type: types.ItemFolder, Size: 102400, TrashedAt: filterNow.Add(-96 * time.Hour)},
	}
}

func names(entries []types.TrashEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestFilter(t *testing.T) {
	testCases := []struct {
		name          string
		opts          FilterOptions
		expectedNames []string
	}{
		{
			name:          "No filter",
			opts:          FilterOptions{},
			expectedNames: []string{"file1.txt", "file2.log", "important.txt", "photos"},
		},
		{
			name:          "Only folders",
			opts:          FilterOptions{Include: IncludeOptions{Type: types.ItemFolder}},
			expectedNames: []string{"photos"},
		},
		{
			name:          "Include by glob",
			opts:          FilterOptions{Include: IncludeOptions{Globs: []string{"*.txt"}}},
			expectedNames: []string{"file1.txt", "important.txt"},
		},
		{
			name:          "Include by pattern",
			opts:          FilterOptions{Include: IncludeOptions{Patterns: []string{`^file\d`}}},
			expectedNames: []string{"file1.txt", "file2.log"},
		},
		{
			name:          "Within two days",
			opts:          FilterOptions{Include: IncludeOptions{WithinDays: 2}},
			expectedNames: []string{"file1.txt"},
		},
		{
			name:          "Exclude by name",
			opts:          FilterOptions{Exclude: ExcludeOptions{Names: []string{"important.txt"}}},
			expectedNames: []string{"file1.txt", "file2.log", "photos"},
		},
		{
			name:          "Exclude by pattern",
			opts:          FilterOptions{Exclude: ExcludeOptions{Patterns: []string{`\.log$`}}},
			expectedNames: []string{"file1.txt", "important.txt", "photos"},
		},
		{
			name:          "Exclude by glob",
			opts:          FilterOptions{Exclude: ExcludeOptions{Globs: []string{"file*"}}},
			expectedNames: []string{"important.txt", "photos"},
		},
		{
			name:          "Min size",
			opts:          FilterOptions{Exclude: ExcludeOptions{MinSize: "1KB"}},
			expectedNames: []string{"file2.log", "important.txt", "photos"},
		},
		{
			name:          "Max size",
			opts:          FilterOptions{Exclude: ExcludeOptions{MaxSize: "2KB"}},
			expectedNames: []string{"file1.txt", "file2.log"},
		},
		{
			name: "Combined",
			opts: FilterOptions{
				Include: IncludeOptions{Type: types.ItemFile, WithinDays: 3},
				Exclude: ExcludeOptions{Globs: []string{"*.log"}},
			},
			expectedNames: []string{"file1.txt"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.Now = filterNow
			got := names(Filter(createTestEntries(), tc.opts))
			if !slices.Equal(got, tc.expectedNames) {
				t.Errorf("Filter() = %v, want %v", got, tc.expectedNames)
			}
		})
	}
}

func TestFilterOptionsValidate(t *testing.T) {
	testCases := []struct {
		name    string
		opts    FilterOptions
		wantErr bool
	}{
		{name: "empty", opts: FilterOptions{}},
		{name: "valid", opts: FilterOptions{Include: IncludeOptions{Patterns: []string{"^a"}, Globs: []string{"*.txt"}}, Exclude: ExcludeOptions{MinSize: "10MB"}}},
		{name: "bad pattern", opts: FilterOptions{Include: IncludeOptions{Patterns: []string{"("}}}, wantErr: true},
		{name: "bad glob", opts: FilterOptions{Exclude: ExcludeOptions{Globs: []string{"[a"}}}, wantErr: true},
		{name: "bad size", opts: FilterOptions{Exclude: ExcludeOptions{MaxSize: "lots"}}, wantErr: true},
		{name: "negative days", opts: FilterOptions{Include: IncludeOptions{WithinDays: -1}}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && types.KindOf(err) != types.ErrInvalid {
				t.Errorf("Validate() kind = %v, want invalid", types.KindOf(err))
			}
		})
	}
}
