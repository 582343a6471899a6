package trash

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/docker/go-units"
	"github.com/gobwas/glob"
	"github.com/k1LoW/duration"
	"github.com/samber/lo"
)

// Filterable defines the interface that trash entries implement to be filtered
type Filterable interface {
	// GetName returns the original name of the item
	GetName() string
	// GetPath returns the original path of the item
	GetPath() string
	// GetDeletedAt returns when the item was trashed
	GetDeletedAt() time.Time
	// GetType returns whether the item is a file or a folder
	GetType() types.ItemType
	// GetSize returns the payload size in bytes
	GetSize() int64
}

// IncludeOptions keeps only the items matching every non-empty field
type IncludeOptions struct {
	Type       types.ItemType
	Patterns   []string
	Globs      []string
	WithinDays int
}

// ExcludeOptions drops the items matching any field
type ExcludeOptions struct {
	Names    []string
	Patterns []string
	Globs    []string
	MinSize  string
	MaxSize  string
}

// FilterOptions holds filtering configuration
type FilterOptions struct {
	Include IncludeOptions
	Exclude ExcludeOptions

	// Now anchors WithinDays; zero means time.Now
	Now time.Time
}

// Filter applies filtering rules to a slice of items
func Filter[T Filterable](items []T, opts FilterOptions) []T {
	items = filterByType(items, opts.Include.Type)
	items = filterByPatterns(items, opts.Include.Patterns)
	items = filterByGlobs(items, opts.Include.Globs)
	items = filterByPeriod(items, opts.Include.WithinDays, opts.Now)

	items = rejectByNames(items, opts.Exclude.Names)
	items = rejectByPatterns(items, opts.Exclude.Patterns)
	items = rejectByGlobs(items, opts.Exclude.Globs)
	items = rejectBySize(items, opts.Exclude.MinSize, opts.Exclude.MaxSize)

	return items
}

// Validate compiles every pattern and glob so that bad input is reported
// instead of silently matching nothing
func (o FilterOptions) Validate() error {
	for _, p := range append(slices.Clone(o.Include.Patterns), o.Exclude.Patterns...) {
		if _, err := regexp.Compile(p); err != nil {
			return types.NewError("filter", types.ErrInvalid, p, err)
		}
	}
	for _, g := range append(slices.Clone(o.Include.Globs), o.Exclude.Globs...) {
		if _, err := glob.Compile(g); err != nil {
			return types.NewError("filter", types.ErrInvalid, g, err)
		}
	}
	for _, s := range []string{o.Exclude.MinSize, o.Exclude.MaxSize} {
		if s == "" {
			continue
		}
		if _, err := units.FromHumanSize(s); err != nil {
			return types.NewError("filter", types.ErrInvalid, s, err)
		}
	}
	if o.Include.WithinDays < 0 {
		return types.NewError("filter", types.ErrInvalid, fmt.Sprint(o.Include.WithinDays), fmt.Errorf("within days must not be negative"))
	}
	return nil
}

func filterByType[T Filterable](items []T, kind types.ItemType) []T {
	if kind == "" {
		return items
	}
	return lo.Filter(items, func(item T, _ int) bool {
		return item.GetType() == kind
	})
}

func matchAnyPattern(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := regexp.MatchString(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

func matchAnyGlob(name string, globs []string) bool {
	for _, g := range globs {
		compiled, err := glob.Compile(g)
		if err != nil {
			continue
		}
		if compiled.Match(name) {
			return true
		}
	}
	return false
}

func filterByPatterns[T Filterable](items []T, patterns []string) []T {
	if len(patterns) == 0 {
		return items
	}
	return lo.Filter(items, func(item T, _ int) bool {
		return matchAnyPattern(item.GetName(), patterns)
	})
}

func filterByGlobs[T Filterable](items []T, globs []string) []T {
	if len(globs) == 0 {
		return items
	}
	return lo.Filter(items, func(item T, _ int) bool {
		return matchAnyGlob(item.GetName(), globs)
	})
}

func filterByPeriod[T Filterable](items []T, days int, now time.Time) []T {
	if days <= 0 {
		return items
	}

	d, err := duration.Parse(fmt.Sprintf("%d days", days))
	if err != nil {
		slog.Error("failed to parse duration", "error", err)
		return items
	}
	if now.IsZero() {
		now = time.Now()
	}

	return lo.Filter(items, func(item T, _ int) bool {
		return now.Sub(item.GetDeletedAt()) < d
	})
}

func rejectByNames[T Filterable](items []T, names []string) []T {
	if len(names) == 0 {
		return items
	}
	return lo.Reject(items, func(item T, _ int) bool {
		return slices.Contains(names, item.GetName())
	})
}

func rejectByPatterns[T Filterable](items []T, patterns []string) []T {
	if len(patterns) == 0 {
		return items
	}
	return lo.Reject(items, func(item T, _ int) bool {
		return matchAnyPattern(item.GetName(), patterns)
	})
}

func rejectByGlobs[T Filterable](items []T, globs []string) []T {
	if len(globs) == 0 {
		return items
	}
	return lo.Reject(items, func(item T, _ int) bool {
		return matchAnyGlob(item.GetName(), globs)
	})
}

func rejectBySize[T Filterable](items []T, minSize, maxSize string) []T {
	if minSize == "" && maxSize == "" {
		return items
	}

	var filtered []T
	for _, item := range items {
		size := item.GetSize()
		include := true
		if minSize != "" {
			if min, err := units.FromHumanSize(minSize); err == nil && size < min {
				include = false
			}
		}
		if maxSize != "" {
			if max, err := units.FromHumanSize(maxSize); err == nil && max < size {
				include = false
			}
		}
		if include {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
