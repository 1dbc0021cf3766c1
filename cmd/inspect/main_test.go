package main

import (
	"bytes"
	"mqtt-chat/storage"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	req := require.New(t)
	out := &bytes.Buffer{}

	render(out, []storage.Entry{{
		ClientID: "MQTTNIOChat-alice", Key: "o.1", Direction: "outbound",
		Kind: "PUBLISH", QoS: 2, MessageID: 1, Topic: "MQTTNIOChat-room1",
		Payload: `{"from":"alice","message":"hi"}`,
	}})

	req.Contains(out.String(), "MQTTNIOChat-alice")
	req.Contains(out.String(), "PUBLISH")
	req.Contains(out.String(), "MQTTNIOChat-room1")
}

func TestRun_MissingDirectory(t *testing.T) {
	req := require.New(t)

	err := run(&bytes.Buffer{}, "", "")

	req.Error(err)
}

func TestRun_EmptyDirectory(t *testing.T) {
	req := require.New(t)
	out := &bytes.Buffer{}

	// A read-only open of a directory without a database fails
	err := run(out, t.TempDir(), "alice")

	req.Error(err)
}
