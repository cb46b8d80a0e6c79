package quetzal

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// WorkspaceStatus is the server-side state of a workspace.
type WorkspaceStatus string

// Workspace states. The *ING states are transient.
const (
	WorkspaceStatusInitializing WorkspaceStatus = "INITIALIZING"
	WorkspaceStatusReady        WorkspaceStatus = "READY"
	WorkspaceStatusCommitting   WorkspaceStatus = "COMMITTING"
	WorkspaceStatusScanning     WorkspaceStatus = "SCANNING"
	WorkspaceStatusDeleting     WorkspaceStatus = "DELETING"
	WorkspaceStatusDeleted      WorkspaceStatus = "DELETED"
	WorkspaceStatusError        WorkspaceStatus = "ERROR"
)

// Transient reports whether the status will change without user action.
func (s WorkspaceStatus) Transient() bool {
	switch s {
	case WorkspaceStatusInitializing, WorkspaceStatusCommitting, WorkspaceStatusScanning, WorkspaceStatusDeleting:
		return true
	default:
		return false
	}
}

// Workspace represents a Quetzal workspace.
type Workspace struct {
	ID           int64                  `json:"id"                      yaml:"id"`
	Name         string                 `json:"name"                    yaml:"name"`
	Description  string                 `json:"description"             yaml:"description"`
	Owner        string                 `json:"owner"                   yaml:"owner"`
	Status       WorkspaceStatus        `json:"status"                  yaml:"status"`
	Families     map[string]interface{} `json:"families"                yaml:"families"`
	Temporary    bool                   `json:"temporary"               yaml:"temporary"`
	CreationDate string                 `json:"creation_date,omitempty" yaml:"creation_date,omitempty"`
	DataURL      string                 `json:"data_url,omitempty"      yaml:"data_url,omitempty"`
}

// FamilyVersions maps family names to versions. A version is a number or
// "latest"; "latest" and empty versions are sent as null.
type FamilyVersions map[string]string

// MarshalJSON implements json.Marshaler.
func (f FamilyVersions) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f))

	for name, version := range f {
		if version == "" || version == "latest" {
			out[name] = nil

			continue
		}

		n, err := strconv.Atoi(version)
		if err != nil {
			return nil, fmt.Errorf("family %q: invalid version %q: %w", name, version, err)
		}

		out[name] = n
	}

	return json.Marshal(out)
}

// ParseFamilies parses "name" and "name:version" entries. The base family is
// always included.
func ParseFamilies(entries []string) (FamilyVersions, error) {
	families := FamilyVersions{"base": "latest"}

	for _, entry := range entries {
		name, version, found := strings.Cut(entry, ":")
		if name == "" || (found && version == "") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFamily, entry)
		}

		if !found {
			version = "latest"
		}

		if version != "latest" {
			if _, err := strconv.Atoi(version); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidFamily, entry)
			}
		}

		families[name] = version
	}

	return families, nil
}

var workspaceNameRule = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)

// WorkspaceCreateRequest is the body of a workspace creation.
type WorkspaceCreateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Families    FamilyVersions `json:"families"`
	Temporary   bool           `json:"temporary"`
}

// Validate checks the request before it is sent.
func (r WorkspaceCreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 64), validation.Match(workspaceNameRule)),
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Families, validation.Required),
	)
}

// WorkspaceListOptions filters a workspace listing.
type WorkspaceListOptions struct {
	Name    string
	Owner   string
	Deleted bool
	// Limit caps the number of collected workspaces; zero means the default.
	Limit int
}

// File holds the metadata of a file, grouped by family.
type File struct {
	ID       string                            `json:"id"       yaml:"id"`
	Metadata map[string]map[string]interface{} `json:"metadata" yaml:"metadata"`
}

// BaseMetadata is the "base" family present on every file.
type BaseMetadata struct {
	ID       string `json:"id"       yaml:"id"`
	Filename string `json:"filename" yaml:"filename"`
	Path     string `json:"path"     yaml:"path"`
	Size     int64  `json:"size"     yaml:"size"`
	Checksum string `json:"checksum" yaml:"checksum"`
	URL      string `json:"url"      yaml:"url"`
	State    string `json:"state"    yaml:"state"`
	Date     string `json:"date"     yaml:"date"`
}

// Base decodes the base family of the file.
func (f *File) Base() (*BaseMetadata, error) {
	raw, ok := f.Metadata["base"]
	if !ok {
		return nil, ErrMissingBaseFamily
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding base metadata: %w", err)
	}

	var base BaseMetadata
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decoding base metadata: %w", err)
	}

	return &base, nil
}

// FileListOptions filters a file listing. Filters become "k=v,k2=v2".
type FileListOptions struct {
	Filters map[string]string
	Limit   int
}

// ValidateFileID checks that id is a UUID.
func ValidateFileID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}

	return nil
}

// UploadRequest describes a file upload into a workspace. Content is rewound
// before every attempt.
type UploadRequest struct {
	Filename  string
	Path      string
	Temporary bool
	Content   io.ReadSeeker
}

// Query is an SQL query and one page of its results.
type Query struct {
	ID          int64                    `json:"id"                     yaml:"id"`
	WorkspaceID int64                    `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`
	Dialect     string                   `json:"dialect"                yaml:"dialect"`
	Query       string                   `json:"query"                  yaml:"query"`
	Page        int                      `json:"page"                   yaml:"page"`
	Pages       int                      `json:"pages"                  yaml:"pages"`
	Total       int                      `json:"total"                  yaml:"total"`
	Results     []map[string]interface{} `json:"results"                yaml:"results"`
}

// QueryCreateRequest is the body of a query creation.
type QueryCreateRequest struct {
	Dialect string `json:"dialect"`
	Query   string `json:"query"`
}

// Validate checks the request before it is sent.
func (r QueryCreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Dialect, validation.Required),
		validation.Field(&r.Query, validation.Required),
	)
}

// QueryResult holds the rows collected by a query run.
type QueryResult struct {
	QueryID int64                    `json:"query_id" yaml:"query_id"`
	Rows    []map[string]interface{} `json:"rows"     yaml:"rows"`
	Total   int                      `json:"total"    yaml:"total"`
}
