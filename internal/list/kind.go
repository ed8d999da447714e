// Package list implements the list-topic write-coordination core: the kinds
// of list a profile owns, the item records they hold, a process-wide TTL
// cache over their contents, and the Coordinator that reads, lazily creates,
// and mutates one list topic at a time.
package list

import "fmt"

// Kind identifies one of the four list topics a profile can own.
type Kind int

const (
	// KindChannels holds the channels a profile has published.
	KindChannels Kind = iota + 1
	// KindGroups holds the groups a profile has published.
	KindGroups
	// KindFollowingChannels holds channels the profile follows.
	KindFollowingChannels
	// KindFollowingGroups holds groups the profile follows.
	KindFollowingGroups
)

// Kinds lists all kinds in declaration order.
var Kinds = []Kind{KindChannels, KindGroups, KindFollowingChannels, KindFollowingGroups}

// String returns the kind's stable name, matching the profile record's
// field names.
func (k Kind) String() string {
	switch k {
	case KindChannels:
		return "Channels"
	case KindGroups:
		return "Groups"
	case KindFollowingChannels:
		return "FollowingChannels"
	case KindFollowingGroups:
		return "FollowingGroups"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the four declared kinds.
func (k Kind) Valid() bool {
	return k >= KindChannels && k <= KindFollowingGroups
}

// IDField returns the JSON field name carrying an item's primary-resource id
// for this kind. Channel kinds write "Channel", group kinds write "Group";
// this matches data already written by earlier clients, so it is part of the
// wire contract, not a style choice.
func (k Kind) IDField() string {
	switch k {
	case KindChannels, KindFollowingChannels:
		return "Channel"
	case KindGroups, KindFollowingGroups:
		return "Group"
	default:
		return ""
	}
}

// TopicMemo returns the memo used when lazily creating this kind's topic.
func (k Kind) TopicMemo() string {
	switch k {
	case KindChannels:
		return "Waypost Channels List"
	case KindGroups:
		return "Waypost Groups List"
	case KindFollowingChannels:
		return "Waypost Following Channels List"
	case KindFollowingGroups:
		return "Waypost Following Groups List"
	default:
		return ""
	}
}

// ParseKind maps a stable name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown list kind %q", s)
}
