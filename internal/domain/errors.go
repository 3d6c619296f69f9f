package domain

import "errors"

// Domain errors
var (
	ErrPartyNotFound     = errors.New("party not found")
	ErrSongNotFound      = errors.New("song not found")
	ErrDuplicateSong     = errors.New("song already in queue")
	ErrSongAlreadyPlayed = errors.New("song already played")
	ErrNotHost           = errors.New("not allowed to remove this song")
	ErrEmptySongRef      = errors.New("song reference cannot be empty")
	ErrEmptyTitle        = errors.New("song title cannot be empty")
	ErrInvalidDirection  = errors.New("invalid vote direction")
)
