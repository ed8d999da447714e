package list

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// wireItem is the JSON shape shared by all four kinds, with both possible
// identifier fields declared. Exactly one is populated depending on kind.
type wireItem struct {
	Name        string `json:"Name"`
	Channel     string `json:"Channel,omitempty"`
	Group       string `json:"Group,omitempty"`
	Description string `json:"Description,omitempty"`
	Media       string `json:"Media,omitempty"`
}

// EncodeItems renders the full item array as the topic message payload for
// the given kind. The array always replaces the topic's previous snapshot;
// there is no incremental encoding.
func EncodeItems(kind Kind, items []Item) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("encode items: invalid kind %d", int(kind))
	}

	wire := make([]wireItem, len(items))
	for i, it := range items {
		it = it.Normalize()
		w := wireItem{Name: it.Name, Description: it.Description, Media: it.Media}
		switch kind.IDField() {
		case "Channel":
			w.Channel = string(it.ID)
		case "Group":
			w.Group = string(it.ID)
		}
		wire[i] = w
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeItems parses a topic message payload into items for the given kind.
//
// Returns (nil, false, nil) when the payload is valid JSON but not an array:
// the caller treats that as an empty list and logs a warning, because data
// written by older clients occasionally holds a bare object.
func DecodeItems(kind Kind, payload []byte) (items []Item, isArray bool, err error) {
	if !kind.Valid() {
		return nil, false, fmt.Errorf("decode items: invalid kind %d", int(kind))
	}

	var probe any
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, false, fmt.Errorf("decode items: %w", err)
	}
	if _, ok := probe.([]any); !ok {
		return nil, false, nil
	}

	var wire []wireItem
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, false, fmt.Errorf("decode items: %w", err)
	}

	items = make([]Item, len(wire))
	for i, w := range wire {
		id := w.Channel
		if kind.IDField() == "Group" {
			id = w.Group
		}
		items[i] = Item{
			Name:        w.Name,
			ID:          ledger.TopicID(id),
			Description: w.Description,
			Media:       w.Media,
		}
	}
	return items, true, nil
}
