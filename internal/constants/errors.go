package constants

import "errors"

// Configuration errors.
var (
	ErrNoURLConfigured = errors.New("no Quetzal URL configured, use --url or QUETZAL_URL")
)

// Argument errors.
var (
	ErrWorkspaceRequired    = errors.New("a workspace id or name is required")
	ErrWorkspaceIDAndName   = errors.New("use a workspace id or a name, not both")
	ErrInvalidFilter        = errors.New("invalid filter, expected key=value")
	ErrFileIDAndFilters     = errors.New("use a file id or filters, not both")
	ErrOutputDirRequired    = errors.New("an output directory is required")
	ErrNonPositiveLimit     = errors.New("limit must be positive")
	ErrUnsupportedOutputFmt = errors.New("unsupported output format")
)

// Lookup errors.
var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrSeveralFilesMatch = errors.New("several files match the filters")
)
