package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"direct-chat/internal/models"
)

// SubjectChat prefixes per-chat subjects: chat.<chat_id>.
const SubjectChat = "chat"

// SubjectProfileUpdated carries {"user_id": "..."} whenever the profile
// service changes a username or avatar.
const SubjectProfileUpdated = "profile.updated"

// NATSRelayConfig holds NATS connection settings.
type NATSRelayConfig struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

// NATSRelay publishes hub events on chat.<chat_id> and hands every event
// received on chat.* back to the local hub, so a message sent on one instance
// reaches websocket clients connected to any instance.
type NATSRelay struct {
	conn       *nats.Conn
	sub        *nats.Subscription
	profileSub *nats.Subscription
}

// NewNATSRelay connects to NATS.
func NewNATSRelay(cfg NATSRelayConfig) (*NATSRelay, error) {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats disconnected err=%v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected url=%s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Printf("nats connected url=%s", nc.ConnectedUrl())
	return &NATSRelay{conn: nc}, nil
}

// Attach subscribes to every chat subject and delivers events into hub.
func (r *NATSRelay) Attach(hub *Hub) error {
	sub, err := r.conn.Subscribe(SubjectChat+".*", func(msg *nats.Msg) {
		event, err := decodeEvent(msg.Subject, msg.Data)
		if err != nil {
			log.Printf("nats relay dropped event subject=%s err=%v", msg.Subject, err)
			return
		}
		hub.Deliver(event)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s.*: %w", SubjectChat, err)
	}
	r.sub = sub
	hub.SetRelay(r)
	return nil
}

// Publish sends the event on the chat's subject.
func (r *NATSRelay) Publish(event models.ChatEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.conn.Publish(chatSubject(event.ChatID), data)
}

// OnProfileUpdated calls fn with the user id of every profile change notification.
func (r *NATSRelay) OnProfileUpdated(fn func(userID string)) error {
	sub, err := r.conn.Subscribe(SubjectProfileUpdated, func(msg *nats.Msg) {
		userID, err := decodeProfileUpdate(msg.Data)
		if err != nil {
			log.Printf("nats relay dropped profile update err=%v", err)
			return
		}
		fn(userID)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectProfileUpdated, err)
	}
	r.profileSub = sub
	return nil
}

// Close drains the subscriptions and the connection.
func (r *NATSRelay) Close() {
	for _, sub := range []*nats.Subscription{r.sub, r.profileSub} {
		if sub == nil {
			continue
		}
		if err := sub.Drain(); err != nil {
			log.Printf("nats drain subscription subject=%s err=%v", sub.Subject, err)
		}
	}
	if err := r.conn.Drain(); err != nil {
		log.Printf("nats drain connection err=%v", err)
	}
}

func chatSubject(chatID string) string {
	return SubjectChat + "." + chatID
}

func decodeEvent(subject string, data []byte) (models.ChatEvent, error) {
	var event models.ChatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.ChatEvent{}, err
	}
	chatID := strings.TrimPrefix(subject, SubjectChat+".")
	if event.ChatID == "" {
		event.ChatID = chatID
	}
	if event.ChatID != chatID {
		return models.ChatEvent{}, fmt.Errorf("chat id %q does not match subject", event.ChatID)
	}
	return event, nil
}

func decodeProfileUpdate(data []byte) (string, error) {
	var update struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &update); err != nil {
		return "", err
	}
	userID := strings.TrimSpace(update.UserID)
	if userID == "" {
		return "", errors.New("profile update without user_id")
	}
	return userID, nil
}
