// Package codec serializes chat messages to and from the wire envelope.
//
// The envelope is a JSON object with exactly two string fields:
//
//	{"from": "alice", "message": "hi"}
//
// There is no version field. Decode rejects anything else instead of
// guessing, so payloads from unrelated publishers on the same topic are
// dropped cleanly. Field names are matched exactly, case included.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mqtt-chat/domain"
	chaterrors "mqtt-chat/errors"
	"unicode/utf8"
)

const (
	fieldFrom    = "from"
	fieldMessage = "message"
)

type envelope struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// Encode produces the compact wire form of message. Text that is not valid
// UTF-8 is refused with errors.ErrEncode rather than silently altered.
func Encode(message domain.ChatMessage) ([]byte, error) {
	if !utf8.ValidString(message.Sender) {
		return nil, fmt.Errorf("%w: sender", chaterrors.ErrEncode)
	}
	if !utf8.ValidString(message.Body) {
		return nil, fmt.Errorf("%w: message", chaterrors.ErrEncode)
	}
	return json.Marshal(envelope{From: message.Sender, Message: message.Body})
}

// Decode parses a wire envelope. It fails with errors.ErrDecode on invalid
// UTF-8 or JSON, unknown fields, trailing data or a missing or empty field.
func Decode(payload []byte) (domain.ChatMessage, error) {
	if !utf8.Valid(payload) {
		return domain.ChatMessage{}, fmt.Errorf("%w: invalid UTF-8", chaterrors.ErrDecode)
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))

	var fields map[string]json.RawMessage
	if err := decoder.Decode(&fields); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", chaterrors.ErrDecode, err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return domain.ChatMessage{}, fmt.Errorf("%w: trailing data", chaterrors.ErrDecode)
	}
	for name := range fields {
		if name != fieldFrom && name != fieldMessage {
			return domain.ChatMessage{}, fmt.Errorf("%w: unknown field %q", chaterrors.ErrDecode, name)
		}
	}

	from, err := stringField(fields, fieldFrom)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	message, err := stringField(fields, fieldMessage)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.NewChatMessage(from, message), nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", chaterrors.ErrDecode, name)
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: %s: %w", chaterrors.ErrDecode, name, err)
	}
	if value == nil || *value == "" {
		return "", fmt.Errorf("%w: missing %s", chaterrors.ErrDecode, name)
	}
	return *value, nil
}
