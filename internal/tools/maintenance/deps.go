package maintenance

import (
	"github.com/slotwise/slotwise/internal/calendar/storage"
)

// closableStore extends the calendar store with a Close method for resource cleanup.
type closableStore interface {
	storage.Store
	Close() error
}
