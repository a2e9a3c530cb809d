// Package chat implements the collaborator surface behind the bearer guard:
// friend invites, user search, message storage with keyset pagination, and
// realtime push. Message content and the handshake public keys are opaque
// ciphertext to the server; it stores and relays bytes.
package chat

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HexBytes marshals as a lowercase hex string in JSON.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("chat: invalid hex string")
	}
	*b = raw
	return nil
}

// publicKeyLen is the length of the X25519 keys exchanged in the invite
// handshake.
const publicKeyLen = 32

// Chat is one invite/friendship row. RecipientPublicKey is nil while the
// invite is pending.
type Chat struct {
	ID                 int32     `json:"id"`
	SenderID           uuid.UUID `json:"senderId"`
	RecipientID        uuid.UUID `json:"recipientId"`
	SenderPublicKey    HexBytes  `json:"senderPublicKey"`
	RecipientPublicKey *HexBytes `json:"recipientPublicKey"`
	CreatedAt          time.Time `json:"createdAt"`
}

// StoredMessage is a persisted message row.
type StoredMessage struct {
	ID          int32     `json:"id"`
	SenderID    uuid.UUID `json:"senderId"`
	RecipientID uuid.UUID `json:"recipientId"`
	Content     HexBytes  `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// User is the search-result projection: no secrets, no key material.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows user search to a relationship state.
type Filter string

const (
	// FilterInvited lists users the caller has invited, not yet accepted.
	FilterInvited Filter = "invited"
	// FilterPending lists users whose invite awaits the caller's acceptance.
	FilterPending Filter = "pending"
	// FilterFriends lists users with a completed handshake.
	FilterFriends Filter = "friends"
)

// ParseFilter validates a filter query value.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterInvited, FilterPending, FilterFriends:
		return Filter(s), true
	}
	return "", false
}
