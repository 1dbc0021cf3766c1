// Package storage persists MQTT session state in BadgerDB.
package storage

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

var _ paho.Store = (*SessionStore)(nil)

// SessionStore keeps the in-flight QoS 1/2 packets of one client in Badger,
// so that a durable session resumed after a restart can finish the exactly
// once flows it had started. The key is formatted as
// "mqtt:{client_id}:{paho_key}" so several identities can share a database.
//
// Save and delete errors are logged and swallowed: paho's store API has no
// error returns and the in-memory state of the client stays authoritative.
//
// The Badger database belongs to the caller; Close only detaches the store.
type SessionStore struct {
	db     *badger.DB
	log    *slog.Logger
	prefix []byte

	mu     sync.RWMutex
	opened bool
}

func NewSessionStore(db *badger.DB, log *slog.Logger, clientID string) *SessionStore {
	return &SessionStore{
		db:     db,
		log:    log.With("client_id", clientID),
		prefix: []byte(fmt.Sprintf("%s%s:", keyPrefix, clientID)),
	}
}

func (s *SessionStore) key(k string) []byte {
	return append(append([]byte(nil), s.prefix...), k...)
}

func (s *SessionStore) isOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opened
}

func (s *SessionStore) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
}

func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
}

func (s *SessionStore) Put(key string, message packets.ControlPacket) {
	if !s.isOpen() {
		s.log.Warn("Put on closed session store", "key", key)
		return
	}
	var buf bytes.Buffer
	if err := message.Write(&buf); err != nil {
		s.log.Error("Encoding packet failed", "key", key, "error", err)
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), buf.Bytes())
	})
	if err != nil {
		s.log.Error("Storing packet failed", "key", key, "error", err)
	}
}

func (s *SessionStore) Get(key string) packets.ControlPacket {
	if !s.isOpen() {
		s.log.Warn("Get on closed session store", "key", key)
		return nil
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			s.log.Error("Reading packet failed", "key", key, "error", err)
		}
		return nil
	}
	packet, err := packets.ReadPacket(bytes.NewReader(raw))
	if err != nil {
		s.log.Error("Decoding packet failed", "key", key, "error", err)
		return nil
	}
	return packet
}

// All lists the stored keys in lexical order.
func (s *SessionStore) All() []string {
	if !s.isOpen() {
		return nil
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(s.prefix):]))
		}
		return nil
	})
	if err != nil {
		s.log.Error("Listing packets failed", "error", err)
	}
	sort.Strings(keys)
	return keys
}

func (s *SessionStore) Del(key string) {
	if !s.isOpen() {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil {
		s.log.Error("Deleting packet failed", "key", key, "error", err)
	}
}

// Reset removes every packet stored for this client.
func (s *SessionStore) Reset() {
	if err := s.db.DropPrefix(s.prefix); err != nil {
		s.log.Error("Resetting session store failed", "error", err)
	}
}
