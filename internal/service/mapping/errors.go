package mapping

import "errors"

// Sentinel errors for the mapping service layer.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrNoMappings        = errors.New("session has no column mappings")
	ErrMissingFile       = errors.New("client file is required")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
