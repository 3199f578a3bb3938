package model

import "errors"

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskExists         = errors.New("task already exists")
	ErrFileNotFound       = errors.New("file record not found")
	ErrVideoNotFound      = errors.New("video file not found")
	ErrTranscriptRequired = errors.New("transcript not found")
	ErrReelNotFound       = errors.New("reel not found")
	ErrReelFileNotFound   = errors.New("reel file not found")
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrUnknownProject     = errors.New("unknown project id")
)
