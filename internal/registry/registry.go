// Package registry tracks the live WebSocket connection of each user. It is
// the only state shared between connection lifecycles, so every mutation
// goes through one lock.
package registry

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Sender is the transport handle stored per user.
type Sender interface {
	WriteText(b []byte) error
	Close() error
}

// Conn wraps a gorilla connection with a write mutex; gorilla permits only
// one concurrent writer.
type Conn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func NewConn(c *websocket.Conn) *Conn { return &Conn{c: c} }

func (w *Conn) WriteText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *Conn) Close() error { return w.c.Close() }

// Registry maps user id to live connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Sender
	log   *logrus.Logger
}

func New(log *logrus.Logger) *Registry {
	return &Registry{conns: make(map[string]Sender), log: log}
}

// Connect registers the connection, replacing and closing any previous one
// for the same user.
func (r *Registry) Connect(userID string, s Sender) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = s
	n := len(r.conns)
	r.mu.Unlock()

	if prev != nil && prev != s {
		_ = prev.Close()
	}
	r.log.WithFields(logrus.Fields{"user_id": userID, "active": n}).Info("ws connected")
}

// Disconnect drops the user's entry if it still points at s; a stale
// disconnect racing a fresh connect must not evict the new connection.
func (r *Registry) Disconnect(userID string, s Sender) {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if ok && (s == nil || cur == s) {
		delete(r.conns, userID)
	}
	n := len(r.conns)
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"user_id": userID, "active": n}).Info("ws disconnected")
}

func (r *Registry) Get(userID string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.conns[userID]
	return s, ok
}

// Send writes to one user's connection; no-op if the user is not connected.
func (r *Registry) Send(userID string, b []byte) error {
	s, ok := r.Get(userID)
	if !ok {
		return nil
	}
	return s.WriteText(b)
}

// Broadcast writes to every connection; a failed send to one user never
// aborts the others.
func (r *Registry) Broadcast(b []byte) {
	r.mu.RLock()
	snapshot := make(map[string]Sender, len(r.conns))
	for id, s := range r.conns {
		snapshot[id] = s
	}
	r.mu.RUnlock()

	for id, s := range snapshot {
		if err := s.WriteText(b); err != nil {
			r.log.WithFields(logrus.Fields{"user_id": id}).WithError(err).Warn("broadcast send failed")
		}
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
