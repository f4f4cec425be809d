package models

// ConversationKind tells apart one-to-one chats from multi-party ones
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
	KindRoom   ConversationKind = "room"
)

// IsMultiParty reports whether messages in this kind of conversation
// must carry the command marker to be answered.
func (k ConversationKind) IsMultiParty() bool {
	return k == KindGroup || k == KindRoom
}

// ParseConversationKind maps a free-form kind name to a ConversationKind.
func ParseConversationKind(s string) (ConversationKind, bool) {
	switch ConversationKind(s) {
	case KindDirect, KindGroup, KindRoom:
		return ConversationKind(s), true
	}
	return "", false
}

// ConversationIdentity identifies a chat scope
type ConversationIdentity struct {
	Kind ConversationKind `json:"kind"`
	ID   string           `json:"id"`
}

// Key is the identifier used for stored state.
func (c ConversationIdentity) Key() string {
	return c.ID
}

// FAQItem is one entry of the static knowledge base
type FAQItem struct {
	Keywords []string `json:"keywords"`
	Answer   string   `json:"answer"`
}
