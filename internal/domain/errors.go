package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAssetMismatch     = errors.New("asset type does not match authorizer")
	ErrBetDuplicated     = errors.New("predicted pair already taken")
	ErrDuplicateRoom     = errors.New("room already exists")
	ErrSlotTaken         = errors.New("player slot already taken")
	ErrNotWinner         = errors.New("caller is not the winner")
	ErrAlreadyWithdrawn  = errors.New("already withdrawn")
	ErrRoomNotSettled    = errors.New("oracle result not published")
	ErrRoomFinished      = errors.New("room is finished")
	ErrNoWinner          = errors.New("no bet matches the published result")
	ErrWinnerExists      = errors.New("room has a winner")
	ErrResultPublished   = errors.New("oracle result already published")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLockHeld          = errors.New("lock already held")
)
