package trash

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"golang.org/x/sync/errgroup"
)

// ReviewItem is a live mapping whose payload diverged from the index.
// It is taken out of the live namespace and kept for an operator.
type ReviewItem struct {
	ID         types.ID       `json:"id"`
	Type       types.ItemType `json:"item_type"`
	Path       string         `json:"path"`
	Reason     string         `json:"reason"`
	DetectedAt time.Time      `json:"detected_at"`
}

// ReconcileReport summarizes one consistency check
type ReconcileReport struct {
	Checked         int                `json:"checked"`
	Review          []ReviewItem       `json:"review"`
	MissingPayloads []types.TrashEntry `json:"missing_payloads"`
	Orphans         []types.ID         `json:"orphans"`
}

// Clean reports whether nothing diverged
func (r *ReconcileReport) Clean() bool {
	return len(r.Review) == 0 && len(r.MissingPayloads) == 0 && len(r.Orphans) == 0
}

const reconcileWorkers = 16

// Reconcile compares the indexes with the filesystem. Live mappings
// without a matching payload move to the review namespace; trash entries
// without payloads and payloads without entries are reported.
func (m *Manager) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	unlock := m.locks.Exclusive()
	defer unlock()

	report := &ReconcileReport{}
	now := m.now().UTC()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)
	for _, kind := range []types.ItemType{types.ItemFolder, types.ItemFile} {
		for _, mapping := range m.idx.Of(kind).Walk("") {
			report.Checked++
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				reason, err := m.diverges(kind, mapping.Path)
				if err != nil || reason == "" {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				report.Review = append(report.Review, ReviewItem{
					ID:         mapping.ID,
					Type:       kind,
					Path:       mapping.Path,
					Reason:     reason,
					DetectedAt: now,
				})
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slices.SortFunc(report.Review, func(a, b ReviewItem) int {
		return cmp.Compare(a.Path, b.Path)
	})

	if err := m.moveToReview(report.Review); err != nil {
		return nil, err
	}

	payloads, err := m.store.Payloads()
	if err != nil {
		return nil, types.IOError("reconcile", m.store.Root(), err)
	}
	for _, e := range m.idx.Trash.List() {
		if _, ok := payloads[e.ID]; ok {
			delete(payloads, e.ID)
			continue
		}
		slog.Warn("trash entry has no payload", "trash_id", e.ID, "name", e.Name)
		report.MissingPayloads = append(report.MissingPayloads, e)
	}
	for _, intent := range m.journal.Pending() {
		delete(payloads, intent.ID)
	}
	for id, kind := range payloads {
		slog.Warn("payload has no trash entry", "trash_id", id, "kind", kind)
		report.Orphans = append(report.Orphans, id)
	}
	slices.Sort(report.Orphans)

	slog.Info("reconcile finished", "checked", report.Checked, "review", len(report.Review),
		"missing_payloads", len(report.MissingPayloads), "orphans", len(report.Orphans))
	return report, nil
}

func (m *Manager) diverges(kind types.ItemType, p string) (string, error) {
	info, err := os.Lstat(m.physical(p))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "payload missing", nil
	case err != nil:
		return "", types.IOError("reconcile", p, err)
	case kind == types.ItemFolder && !info.IsDir():
		return "expected a directory", nil
	case kind == types.ItemFile && !info.Mode().IsRegular():
		return "expected a regular file", nil
	}
	return "", nil
}

func (m *Manager) moveToReview(items []ReviewItem) error {
	if len(items) == 0 {
		return nil
	}
	byKind := make(map[types.ItemType][]types.ID)
	for _, item := range items {
		slog.Warn("moving divergent mapping to review", "kind", item.Type, "id", item.ID, "path", item.Path, "reason", item.Reason)
		if err := m.review.Put(string(item.ID), item); err != nil {
			return err
		}
		byKind[item.Type] = append(byKind[item.Type], item.ID)
	}
	for kind, ids := range byKind {
		if err := m.idx.Of(kind).RemoveMany(ids); err != nil {
			return err
		}
	}
	return nil
}

// Review returns the mappings set aside by Reconcile
func (m *Manager) Review() []ReviewItem {
	items := make([]ReviewItem, 0, m.review.Len())
	for _, item := range m.review.All() {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b ReviewItem) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return items
}
