package matchmaking

import "errors"

var (
	ErrMissingAddress = errors.New("missing player address")
	ErrInvalidStake   = errors.New("stake must be a positive amount")
	// ErrAlreadyMatched PendingMatch가 ready/만료로 정리될 때까지 유지된다.
	// match_expired(requeued=false) 이후에는 다시 join_queue 할 수 있다.
	ErrAlreadyMatched = errors.New("connection already has a pending match")
	ErrNotInMatch     = errors.New("connection is not a player in this match")
	ErrStopped        = errors.New("negotiator is not running")
)
