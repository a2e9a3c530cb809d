package chat

import "errors"

var (
	// ErrAlreadyInvited reports a duplicate invite for the same user pair.
	ErrAlreadyInvited = errors.New("chat already exists")

	// ErrUnknownUser reports an invite to a nonexistent user.
	ErrUnknownUser = errors.New("unknown user")

	// ErrSelfInvite reports an invite addressed to the sender.
	ErrSelfInvite = errors.New("self invite")

	// ErrNoPendingInvite reports an accept with no matching pending invite.
	ErrNoPendingInvite = errors.New("no pending invite")

	// ErrNotFriends reports a message to a user without a completed
	// handshake.
	ErrNotFriends = errors.New("not friends")
)
