// Package notify sends desktop notifications for contexts that have no page
// to draw on, such as the background when no chat tab is open.
package notify

import (
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/entrhq/widescreen/pkg/logging"
)

// DefaultTitle is used when a notification has no title of its own.
const DefaultTitle = "Widescreen"

type notifyFunc func(title, message string, icon any) error

var (
	mu       sync.RWMutex
	notifier notifyFunc = beeep.Notify
)

// SetNotifier replaces the platform call. Used by tests.
func SetNotifier(fn func(title, message string, icon any) error) {
	mu.Lock()
	defer mu.Unlock()
	notifier = fn
}

// ResetNotifier restores the beeep implementation.
func ResetNotifier() {
	mu.Lock()
	defer mu.Unlock()
	notifier = beeep.Notify
}

// Desktop is a notifier bound to a logger.
type Desktop struct {
	logger *logging.Logger
}

// NewDesktop returns a desktop notifier.
func NewDesktop(logger *logging.Logger) *Desktop {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Desktop{logger: logger}
}

// Notify shows a desktop notification. An empty title uses DefaultTitle.
func (d *Desktop) Notify(title, message string) error {
	if title == "" {
		title = DefaultTitle
	}
	mu.RLock()
	fn := notifier
	mu.RUnlock()

	d.logger.Debugf("desktop notification: title=%q message=%q", title, message)
	// empty icon lets beeep pick the platform default
	if err := fn(title, message, ""); err != nil {
		d.logger.Warnf("desktop notification failed: %v", err)
		return err
	}
	return nil
}
