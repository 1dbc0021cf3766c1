package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingRequiredFlags(t *testing.T) {
	req := require.New(t)
	out := &bytes.Buffer{}

	code, err := run([]string{"-t", "room1"}, strings.NewReader(""), out)

	req.Error(err)
	req.Equal(exitConfig, code)
}

func TestRun_UnknownTransport(t *testing.T) {
	req := require.New(t)
	out := &bytes.Buffer{}

	code, err := run([]string{"-t", "room1", "-u", "alice", "--transport", "carrier-pigeon"},
		strings.NewReader(""), out)

	req.Error(err)
	req.Equal(exitConfig, code)
}

func TestRun_InvalidPort(t *testing.T) {
	req := require.New(t)
	out := &bytes.Buffer{}

	code, err := run([]string{"-t", "room1", "-u", "alice", "-p", "0"}, strings.NewReader(""), out)

	req.Error(err)
	req.Equal(exitConfig, code)
}

func TestRun_Help(t *testing.T) {
	req := require.New(t)
	out := &bytes.Buffer{}

	code, err := run([]string{"--help"}, strings.NewReader(""), out)

	req.NoError(err)
	req.Equal(exitOK, code)
	req.Contains(out.String(), "--servername")
}

func TestRun_UnreachableBroker(t *testing.T) {
	req := require.New(t)
	t.Setenv("CHAT_CONNECT_TIMEOUT", "1s")
	server, err := miniredis.Run()
	req.NoError(err)
	port := server.Port()
	server.Close()
	out := &bytes.Buffer{}

	// Nothing listens on the port any more
	code, err := run([]string{"-t", "room1", "-u", "alice", "-s", "127.0.0.1", "-p", port, "--transport", "redis"},
		strings.NewReader("hello\n"), out)

	req.NoError(err)
	req.Equal(exitRuntime, code)
	req.Contains(out.String(), "Connecting to MQTTNIOChat-room1")
	req.NotContains(out.String(), "Connected to")
}

func TestRun_ChatOverRedis(t *testing.T) {
	req := require.New(t)
	server := miniredis.RunT(t)
	out := &bytes.Buffer{}

	code, err := run([]string{"-t", "room1", "-u", "alice", "-s", "127.0.0.1", "-p", server.Port(),
		"--transport", "redis", "--no-color"},
		strings.NewReader("hello\n\n/quit\n"), out)

	req.NoError(err)
	req.Equal(exitOK, code)
	req.Contains(out.String(), "Connected to MQTTNIOChat-room1")
	req.Contains(out.String(), "Disconnected")
}
