package session

import "errors"

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrNotAMember       = errors.New("player not in this match")
	ErrUnbound          = errors.New("connection is not bound to a match")
	ErrDuplicateMatch   = errors.New("match already exists")
	ErrMatchNotJoinable = errors.New("match is no longer accepting players")
	ErrAlreadyBound     = errors.New("connection is already bound to the other player")
	ErrInvalidIntent    = errors.New("intent must be one of up, down, stop")
	ErrInvalidPlayers   = errors.New("a match needs two distinct player addresses")
)
