package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod         = notificationsService + ".Notify"
)

// busCaller is the part of dbus.BusObject the desktop notifier needs.
type busCaller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DesktopNotifier posts a desktop notification for new files over the
// session bus. Other kinds are ignored.
type DesktopNotifier struct {
	appName string
	expire  time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	connect func() (busCaller, error)
	obj     busCaller
}

// NewDesktopNotifier creates a notifier that connects to the session bus on
// first use. expire is passed to the notification server as its timeout.
func NewDesktopNotifier(appName string, expire time.Duration, logger *slog.Logger) *DesktopNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DesktopNotifier{
		appName: appName,
		expire:  expire,
		logger:  logger,
		connect: connectSessionBus,
	}
}

func connectSessionBus() (busCaller, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return conn.Object(notificationsService, notificationsPath), nil
}

func (d *DesktopNotifier) object() (busCaller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.obj != nil {
		return d.obj, nil
	}
	obj, err := d.connect()
	if err != nil {
		return nil, err
	}
	d.obj = obj
	return obj, nil
}

// Notify posts a notification for KindNewFile.
func (d *DesktopNotifier) Notify(ctx context.Context, n Notification) {
	if n.Kind != KindNewFile || n.File == nil {
		return
	}

	obj, err := d.object()
	if err != nil {
		d.logger.Debug("desktop notifications unavailable", "error", err)
		return
	}

	body := fmt.Sprintf("%s (%s)", n.File.Path, HumanSize(n.File.Size))
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName,
		uint32(0),
		"document-new",
		n.File.Name,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(d.expire.Milliseconds()),
	)
	if call != nil && call.Err != nil {
		d.logger.Debug("desktop notification failed", "error", call.Err)
	}
}
