package storage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

const keyPrefix = "mqtt:"

// Entry describes one stored packet. Direction is "outbound" for packets we
// sent and still wait to see acknowledged, "inbound" for the reverse.
type Entry struct {
	ClientID  string
	Key       string
	Direction string
	Kind      string
	QoS       byte
	MessageID uint16
	Topic     string
	Payload   string
	Err       error
}

// Inspect lists the packets stored for clientID, or for every client when
// clientID is empty. Entries that cannot be decoded are returned with Err.
func Inspect(db *badger.DB, clientID string) ([]Entry, error) {
	prefix := []byte(keyPrefix)
	if clientID != "" {
		prefix = []byte(fmt.Sprintf("%s%s:", keyPrefix, clientID))
	}

	var entries []Entry
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			entry := parseKey(string(item.Key()))
			err := item.Value(func(v []byte) error {
				describe(&entry, v)
				return nil
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// parseKey splits "mqtt:{client_id}:{paho_key}". Paho keys never contain
// a colon, client ids may.
func parseKey(raw string) Entry {
	rest := strings.TrimPrefix(raw, keyPrefix)
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return Entry{Key: rest}
	}
	entry := Entry{ClientID: rest[:i], Key: rest[i+1:]}
	switch {
	case strings.HasPrefix(entry.Key, "o."):
		entry.Direction = "outbound"
	case strings.HasPrefix(entry.Key, "i."):
		entry.Direction = "inbound"
	}
	return entry
}

func describe(entry *Entry, raw []byte) {
	packet, err := packets.ReadPacket(bytes.NewReader(raw))
	if err != nil {
		entry.Err = err
		return
	}
	details := packet.Details()
	entry.QoS = details.Qos
	entry.MessageID = details.MessageID

	switch p := packet.(type) {
	case *packets.PublishPacket:
		entry.Kind = "PUBLISH"
		entry.Topic = p.TopicName
		entry.Payload = string(p.Payload)
	case *packets.PubrelPacket:
		entry.Kind = "PUBREL"
	case *packets.PubrecPacket:
		entry.Kind = "PUBREC"
	case *packets.PubackPacket:
		entry.Kind = "PUBACK"
	case *packets.PubcompPacket:
		entry.Kind = "PUBCOMP"
	default:
		entry.Kind = fmt.Sprintf("%T", packet)
	}
}
