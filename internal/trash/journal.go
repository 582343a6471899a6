package trash

import (
	"cmp"
	"slices"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/store"
	"github.com/samber/lo"
)

// Operation names a lifecycle transition recorded in the journal
type Operation string

const (
	OperationTrash   Operation = "trash"
	OperationRestore Operation = "restore"
	OperationPurge   Operation = "purge"
)

// Intent is written before a lifecycle operation touches the filesystem
// and deleted once the operation committed or rolled back. Intents still
// present at startup belong to operations interrupted by a crash.
type Intent struct {
	ID        types.ID         `json:"id"`
	Operation Operation        `json:"operation"`
	Entry     types.TrashEntry `json:"entry"`
	LivePath  string           `json:"live_path"`
	CreatedAt time.Time        `json:"created_at"`
}

// Journal persists intents in the journal namespace
type Journal struct {
	c *index.Collection[Intent]
}

// OpenJournal loads pending intents from backend
func OpenJournal(backend store.Backend) (*Journal, error) {
	c, err := index.OpenCollection[Intent](backend, store.NamespaceJournal)
	if err != nil {
		return nil, err
	}
	return &Journal{c: c}, nil
}

// Begin durably records intent
func (j *Journal) Begin(intent Intent) error {
	return j.c.Put(string(intent.ID), intent)
}

// Finish drops the intent of id
func (j *Journal) Finish(id types.ID) error {
	return j.c.Delete(string(id))
}

// Pending returns unfinished intents, oldest first
func (j *Journal) Pending() []Intent {
	out := lo.Values(j.c.All())
	slices.SortFunc(out, func(a, b Intent) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out
}
