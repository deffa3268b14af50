package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	logx "batteryfriend/pkg/logx"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = notificationsDest + ".Notify"
)

// DBusSink shows notifications through the freedesktop notification server on
// the session bus.
//
// The connection is opened on first use and dropped after a failed call so
// the next Show reconnects (e.g. after the notification daemon restarted).
type DBusSink struct {
	mu   sync.Mutex
	conn *dbus.Conn
	log  logx.Logger

	connect func() (*dbus.Conn, error)
}

func NewDBusSink(log logx.Logger) *DBusSink {
	return &DBusSink{
		log: log,
		connect: func() (*dbus.Conn, error) {
			return dbus.ConnectSessionBus()
		},
	}
}

func (s *DBusSink) Show(ctx context.Context, p Payload) (uint32, error) {
	conn, err := s.session()
	if err != nil {
		return 0, err
	}

	call := conn.Object(notificationsDest, notificationsPath).CallWithContext(ctx, notificationsNotify, 0,
		p.AppName,
		p.ReplacesID,
		p.Icon,
		p.Summary,
		p.Body,
		[]string{},
		notifyHints(p),
		expireMillis(p),
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		s.drop(conn)
		return 0, fmt.Errorf("dbus notify: %w", err)
	}
	return id, nil
}

// Close releases the session bus connection.
func (s *DBusSink) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *DBusSink) session() (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && s.conn.Connected() {
		return s.conn, nil
	}
	conn, err := s.connect()
	if err != nil {
		return nil, fmt.Errorf("dbus session bus: %w", err)
	}
	s.log.Debug("dbus session connected")
	s.conn = conn
	return conn, nil
}

func (s *DBusSink) drop(conn *dbus.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func notifyHints(p Payload) map[string]dbus.Variant {
	hints := map[string]dbus.Variant{}
	if p.Urgency != UrgencyUnset {
		hints["urgency"] = dbus.MakeVariant(p.Urgency.Level())
	}
	return hints
}

// expireMillis maps 0 to -1, the server default.
func expireMillis(p Payload) int32 {
	if p.ExpireTimeout <= 0 {
		return -1
	}
	ms := p.ExpireTimeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int32(ms)
}
