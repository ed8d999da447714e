// Package profile models the owning profile record: the durable object whose
// four list fields back-reference the profile's list topics, the ledger-backed
// updater the list Coordinator uses to repair those back-references, and
// profile migration.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/list"
)

// TypeProfile is the Type discriminator of a profile record message.
const TypeProfile = "Profile"

// Record is the profile object stored as the latest message of the profile
// topic. Each list field holds the list topic's id, or "" when the list has
// not been lazily created yet.
type Record struct {
	Type        string `json:"Type"`
	DisplayName string `json:"DisplayName,omitempty"`
	Bio         string `json:"Bio,omitempty"`
	Picture     string `json:"Picture,omitempty"`

	Channels          ledger.TopicID `json:"Channels,omitempty"`
	Groups            ledger.TopicID `json:"Groups,omitempty"`
	FollowingChannels ledger.TopicID `json:"FollowingChannels,omitempty"`
	FollowingGroups   ledger.TopicID `json:"FollowingGroups,omitempty"`
}

// ListTopic returns the topic id recorded for kind, "" when absent.
func (r *Record) ListTopic(kind list.Kind) ledger.TopicID {
	switch kind {
	case list.KindChannels:
		return r.Channels
	case list.KindGroups:
		return r.Groups
	case list.KindFollowingChannels:
		return r.FollowingChannels
	case list.KindFollowingGroups:
		return r.FollowingGroups
	default:
		return ""
	}
}

// SetListTopic records the topic id for kind.
func (r *Record) SetListTopic(kind list.Kind, id ledger.TopicID) {
	switch kind {
	case list.KindChannels:
		r.Channels = id
	case list.KindGroups:
		r.Groups = id
	case list.KindFollowingChannels:
		r.FollowingChannels = id
	case list.KindFollowingGroups:
		r.FollowingGroups = id
	}
}

// Store reads and rewrites the profile record on its own topic. Like list
// topics, the profile topic's latest message is the whole current record.
type Store struct {
	client  ledger.Client
	topicID ledger.TopicID
	log     *slog.Logger
}

// NewStore binds a Store to the profile topic.
func NewStore(client ledger.Client, topicID ledger.TopicID, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, topicID: topicID, log: log}
}

// TopicID returns the profile topic id.
func (s *Store) TopicID() ledger.TopicID { return s.topicID }

// Load reads the latest profile record. A topic with no messages yet loads
// as an empty record.
func (s *Store) Load(ctx context.Context) (Record, error) {
	msg, err := s.client.ReadLatestMessage(ctx, s.topicID)
	if err != nil {
		return Record{}, fmt.Errorf("load profile %s: %w", s.topicID, err)
	}
	if msg == nil {
		return Record{Type: TypeProfile}, nil
	}

	var rec Record
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode profile %s: %w", s.topicID, err)
	}
	if rec.Type != "" && rec.Type != TypeProfile {
		s.log.Warn("profile topic latest message has unexpected type",
			"topic", s.topicID, "type", rec.Type)
	}
	rec.Type = TypeProfile
	return rec, nil
}

// Save submits rec as the profile topic's new latest message.
func (s *Store) Save(ctx context.Context, rec Record) error {
	rec.Type = TypeProfile
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	payload := bytes.TrimRight(buf.Bytes(), "\n")
	if _, err := s.client.SubmitMessage(ctx, s.topicID, payload, "Waypost Profile"); err != nil {
		return fmt.Errorf("save profile %s: %w", s.topicID, err)
	}
	return nil
}

// Updater returns the back-reference updater the list Coordinator injects:
// it reads the current record, points the kind's field at the new list
// topic, and rewrites the record. Already-pointing records report success
// without a write, keeping the repair path idempotent.
func (s *Store) Updater() list.BackRefUpdater {
	return func(ctx context.Context, topicID ledger.TopicID, kind list.Kind) (bool, error) {
		rec, err := s.Load(ctx)
		if err != nil {
			return false, err
		}
		if rec.ListTopic(kind) == topicID {
			return true, nil
		}
		rec.SetListTopic(kind, topicID)
		if err := s.Save(ctx, rec); err != nil {
			return false, err
		}
		return true, nil
	}
}
