package trash

import (
	"errors"
	"fmt"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/core/types"
)

// ErrPayloadMissing marks an entry or mapping whose bytes are gone from disk
var ErrPayloadMissing = errors.New("payload missing on disk")

// classify maps filesystem move errors onto the error kinds
func classify(op, subject string, err error) error {
	switch {
	case err == nil:
		return nil
	case types.KindOf(err) != nil:
		return err
	case errors.Is(err, atomic.ErrSourceNotFound):
		return types.NewError(op, types.ErrNotFound, subject, fmt.Errorf("%w: %w", ErrPayloadMissing, err))
	case errors.Is(err, atomic.ErrDestinationExists):
		return types.NewError(op, types.ErrConflict, subject, err)
	default:
		return types.NewError(op, types.ErrIO, subject, err)
	}
}
