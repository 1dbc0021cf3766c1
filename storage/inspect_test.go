package storage

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	alice := NewSessionStore(db, slog.Default(), "MQTTNIOChat-alice")
	bob := NewSessionStore(db, slog.Default(), "MQTTNIOChat-bob")
	alice.Open()
	bob.Open()

	// Given alice waits for two acknowledgements and bob for one
	alice.Put("o.1", publishPacket(1, "MQTTNIOChat-room1", `{"from":"alice","message":"hi"}`))
	pubrel := packets.NewControlPacket(packets.Pubrel).(*packets.PubrelPacket)
	pubrel.MessageID = 2
	alice.Put("i.2", pubrel)
	bob.Put("o.3", publishPacket(3, "MQTTNIOChat-room1", `{"from":"bob","message":"yo"}`))

	// When alice's packets are inspected
	entries, err := Inspect(db, "MQTTNIOChat-alice")

	// Then both are described, in key order
	req.NoError(err)
	req.Len(entries, 2)
	req.Equal(Entry{
		ClientID: "MQTTNIOChat-alice", Key: "i.2", Direction: "inbound",
		Kind: "PUBREL", QoS: 1, MessageID: 2,
	}, entries[0])
	req.Equal("PUBLISH", entries[1].Kind)
	req.Equal("outbound", entries[1].Direction)
	req.Equal("MQTTNIOChat-room1", entries[1].Topic)
	req.Equal(uint16(1), entries[1].MessageID)

	all, err := Inspect(db, "")
	req.NoError(err)
	req.Len(all, 3)
}

func TestInspect_UndecodableValue(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("mqtt:MQTTNIOChat-alice:o.9"), []byte{0xff})
	}))

	entries, err := Inspect(db, "")

	req.NoError(err)
	req.Len(entries, 1)
	req.Error(entries[0].Err)
	req.Equal("MQTTNIOChat-alice", entries[0].ClientID)
}
