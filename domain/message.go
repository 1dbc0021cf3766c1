// Package domain contains the core concepts of the chat client.
// This file defines the chat message exchanged on a topic.
// Messages are immutable values compared structurally.
package domain

import "fmt"

// ChatMessage is one line of chat authored by Sender.
type ChatMessage struct {
	Sender string
	Body   string
}

func NewChatMessage(sender, body string) ChatMessage {
	return ChatMessage{Sender: sender, Body: body}
}

// IsFrom reports whether the message was authored by identity.
func (m ChatMessage) IsFrom(identity string) bool {
	return m.Sender == identity
}

// String renders the message the way it is shown in the feed.
func (m ChatMessage) String() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Body)
}
