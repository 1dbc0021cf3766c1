package codec

import (
	"errors"
	"mqtt-chat/domain"
	chaterrors "mqtt-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_UsesWireFieldNames(t *testing.T) {
	req := require.New(t)

	payload, err := Encode(domain.NewChatMessage("alice", "hi"))

	req.NoError(err)
	req.JSONEq(`{"from":"alice","message":"hi"}`, string(payload))
}

func TestDecode_RoundTrip(t *testing.T) {
	req := require.New(t)
	messages := []domain.ChatMessage{
		domain.NewChatMessage("alice", "hi"),
		domain.NewChatMessage("bob", "Joined! Say Hello!"),
		domain.NewChatMessage("zoë", "ünïcødé \"quoted\" \\ and\ttabs"),
		domain.NewChatMessage("x", "{\"from\":\"nested\"}"),
	}

	for _, message := range messages {
		payload, err := Encode(message)
		req.NoError(err)

		decoded, err := Decode(payload)
		req.NoError(err)
		req.Equal(message, decoded)
	}
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	req := require.New(t)

	// Given text typed on a Latin-1 terminal
	payload, err := Encode(domain.NewChatMessage("alice", "caf\xe9"))

	// Then it is refused instead of being rewritten to U+FFFD
	req.ErrorIs(err, chaterrors.ErrEncode)
	req.Nil(payload)

	_, err = Encode(domain.NewChatMessage("\xffalice", "hi"))
	req.ErrorIs(err, chaterrors.ErrEncode)
}

func TestDecode_AcceptsForeignEncoderOutput(t *testing.T) {
	req := require.New(t)

	// Given an envelope with different field order and whitespace
	payload := []byte("{\n  \"message\" : \"hello\",\n  \"from\" : \"bob\"\n}\n")

	decoded, err := Decode(payload)

	req.NoError(err)
	req.Equal(domain.NewChatMessage("bob", "hello"), decoded)
}

func TestDecode_RejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ``},
		{name: "not json", payload: `hello world`},
		{name: "truncated", payload: `{"from":"alice","message":"h`},
		{name: "null", payload: `null`},
		{name: "array", payload: `["alice","hi"]`},
		{name: "missing from", payload: `{"message":"hi"}`},
		{name: "missing message", payload: `{"from":"alice"}`},
		{name: "empty from", payload: `{"from":"","message":"hi"}`},
		{name: "empty message", payload: `{"from":"alice","message":""}`},
		{name: "wrong type", payload: `{"from":42,"message":"hi"}`},
		{name: "unknown field", payload: `{"from":"alice","message":"hi","version":2}`},
		{name: "trailing data", payload: `{"from":"alice","message":"hi"} {}`},
		{name: "upper case names", payload: `{"FROM":"bob","Message":"hi"}`},
		{name: "mixed case name", payload: `{"from":"bob","Message":"hi"}`},
		{name: "null message", payload: `{"from":"bob","message":null}`},
		{name: "invalid utf8", payload: "{\"from\":\"bob\",\"message\":\"caf\xe9\"}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)

			decoded, err := Decode([]byte(tc.payload))

			req.Error(err)
			req.True(errors.Is(err, chaterrors.ErrDecode))
			req.Equal(domain.ChatMessage{}, decoded)
		})
	}
}
