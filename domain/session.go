package domain

import (
	"fmt"
	chaterrors "mqtt-chat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Prefix namespaces topics and client identifiers so chat traffic does not
// collide with unrelated traffic on a shared broker.
const Prefix = "MQTTNIOChat-"

// AnnounceText is published once the session has joined its topic.
const AnnounceText = "Joined! Say Hello!"

var validate = validator.New()

// SessionConfig is fixed for the lifetime of the process.
type SessionConfig struct {
	Topic    string `validate:"required"`
	Identity string `validate:"required"`
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	// CleanSession discards broker-side session state on connect.
	// The default (false) asks the broker to keep subscriptions and
	// in-flight QoS 2 messages between runs of the same identity.
	CleanSession bool
	// ClientID overrides the derived client identifier.
	ClientID string
}

func (c SessionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", chaterrors.ErrInvalidConfig, err)
	}
	return nil
}

// TopicName is the broker topic the session publishes and subscribes to.
func (c SessionConfig) TopicName() string {
	return Prefix + c.Topic
}

// ClientIdentifier is the transport-level identity of the session. It is
// stable for a given user so a durable session can be resumed.
func (c SessionConfig) ClientIdentifier() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return Prefix + c.Identity
}

// WithDerivedClientID fixes the client identifier of a clean session to
// "MQTTNIOChat-<identity>-<uuid>". A clean session has nothing to resume,
// so a unique identifier keeps two users with the same name from taking
// over each other's connection. Durable sessions keep the stable identifier.
func (c SessionConfig) WithDerivedClientID() SessionConfig {
	if c.ClientID == "" && c.CleanSession {
		c.ClientID = fmt.Sprintf("%s%s-%s", Prefix, c.Identity, uuid.NewString())
	}
	return c
}

// Address is the broker address in host:port form.
func (c SessionConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
