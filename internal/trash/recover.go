package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/core/types"
)

// Recover resolves the intents left behind by operations interrupted by
// a crash. Each intent is rolled forward when its index commit happened
// and rolled back otherwise. It must run before serving requests.
func (m *Manager) Recover(ctx context.Context) error {
	unlock := m.locks.Exclusive()
	defer unlock()

	var errs []error
	for _, intent := range m.journal.Pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := slog.With("intent", intent.ID, "operation", intent.Operation, "kind", intent.Entry.Type)

		var err error
		switch intent.Operation {
		case OperationTrash:
			err = m.recoverTrash(intent, log)
		case OperationRestore:
			err = m.recoverRestore(intent, log)
		case OperationPurge:
			err = m.recoverPurge(intent, log)
		default:
			err = fmt.Errorf("unknown operation %q", intent.Operation)
		}
		if err != nil {
			log.Error("failed to recover interrupted operation", "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", intent.Operation, intent.ID, err))
			continue
		}
		if err := m.journal.Finish(intent.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) recoverTrash(intent Intent, log *slog.Logger) error {
	e := intent.Entry
	if _, err := m.idx.Trash.Get(e.ID); err == nil {
		log.Warn("completing interrupted trash", "path", intent.LivePath)
		return m.unmapPresent(e)
	}

	quarantined, err := m.store.Exists(e.Type, e.ID)
	if err != nil {
		return err
	}
	if quarantined {
		log.Warn("rolling back interrupted trash", "path", intent.LivePath)
		if err := m.store.Release(e.Type, e.ID, m.physical(intent.LivePath)); err != nil {
			return err
		}
	}
	// mappings may have been half removed by an interrupted rollback
	return m.remap(e, intent.LivePath)
}

func (m *Manager) recoverRestore(intent Intent, log *slog.Logger) error {
	e := intent.Entry
	if _, err := m.idx.Trash.Get(e.ID); err != nil {
		return nil
	}

	quarantined, err := m.store.Exists(e.Type, e.ID)
	if err != nil {
		return err
	}
	if quarantined {
		log.Warn("rolling back interrupted restore", "path", intent.LivePath)
		return m.unmapPresent(e)
	}

	live, err := atomic.Exists(m.physical(intent.LivePath))
	if err != nil {
		return err
	}
	if !live {
		// reconcile reports entries without payloads
		log.Error("payload of interrupted restore is missing", "path", intent.LivePath)
		return nil
	}

	log.Warn("completing interrupted restore", "path", intent.LivePath)
	if _, err := m.ensureAncestors(types.ParentPath(intent.LivePath)); err != nil {
		return err
	}
	if err := m.remap(e, intent.LivePath); err != nil {
		return err
	}
	_, err = m.idx.Trash.Remove(e.ID)
	return err
}

func (m *Manager) recoverPurge(intent Intent, log *slog.Logger) error {
	e := intent.Entry
	if err := m.store.Purge(e.Type, e.ID); err != nil && !types.IsNotFound(err) {
		return err
	}
	if _, err := m.idx.Trash.Remove(e.ID); err != nil && !types.IsNotFound(err) {
		return err
	}
	log.Warn("completed interrupted purge", "name", e.Name)
	return nil
}
