package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	internalhttp "github.com/quetzal-org/quetzal-client/internal/http"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// Static errors for err113 compliance.
var (
	ErrFilenameRequired = errors.New("upload filename is required")
	ErrContentRequired  = errors.New("upload content is required")
	errStreamReopened   = errors.New("upload stream reopened")
)

// WorkspacesClient implements quetzal.WorkspacesClient.
type WorkspacesClient struct {
	httpClient *internalhttp.Client
	poller     *Poller
	username   string
}

// NewWorkspacesClient creates a new workspaces client. username is the
// default owner of name lookups.
func NewWorkspacesClient(httpClient *internalhttp.Client, poller *Poller, username string) *WorkspacesClient {
	return &WorkspacesClient{
		httpClient: httpClient,
		poller:     poller,
		username:   username,
	}
}

func workspacePath(id int64) string {
	return constants.WorkspacesPath + strconv.FormatInt(id, 10)
}

// Create implements quetzal.WorkspacesClient.Create.
func (c *WorkspacesClient) Create(ctx context.Context, request *quetzal.WorkspaceCreateRequest) (*quetzal.Workspace, error) {
	body := *request
	if len(body.Families) == 0 {
		body.Families = quetzal.FamilyVersions{constants.BaseFamily: constants.LatestVersion}
	}

	if err := body.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	resp, err := c.httpClient.Post(ctx, constants.WorkspacesPath, body)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	return decodeWorkspace(resp.Body)
}

// Get implements quetzal.WorkspacesClient.Get.
func (c *WorkspacesClient) Get(ctx context.Context, id int64) (*quetzal.Workspace, error) {
	resp, err := c.httpClient.Get(ctx, workspacePath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting workspace: %w", err)
	}

	return decodeWorkspace(resp.Body)
}

// GetByName implements quetzal.WorkspacesClient.GetByName.
func (c *WorkspacesClient) GetByName(ctx context.Context, name, owner string) (*quetzal.Workspace, error) {
	if owner == "" {
		owner = c.username
	}

	workspaces, _, err := c.List(ctx, &quetzal.WorkspaceListOptions{Name: name, Owner: owner})
	if err != nil {
		return nil, err
	}

	for i := range workspaces {
		if workspaces[i].Name == name {
			return &workspaces[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q owned by %q", constants.ErrWorkspaceNotFound, name, owner)
}

// List implements quetzal.WorkspacesClient.List.
func (c *WorkspacesClient) List(ctx context.Context, opts *quetzal.WorkspaceListOptions) ([]quetzal.Workspace, int, error) {
	if opts == nil {
		opts = &quetzal.WorkspaceListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}

	workspaces, total, err := quetzal.Collect(ctx, c.fetchPage(opts, min(limit, constants.MaxPageSize)), limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing workspaces: %w", err)
	}

	return workspaces, total, nil
}

// Iterate implements quetzal.WorkspacesClient.Iterate.
func (c *WorkspacesClient) Iterate(ctx context.Context, opts *quetzal.WorkspaceListOptions) *quetzal.PaginationIterator[quetzal.Workspace] {
	if opts == nil {
		opts = &quetzal.WorkspaceListOptions{}
	}

	return quetzal.NewPaginationIterator(ctx, c.fetchPage(opts, constants.MaxPageSize))
}

func (c *WorkspacesClient) fetchPage(opts *quetzal.WorkspaceListOptions, perPage int) quetzal.PageFetcher[quetzal.Workspace] {
	return func(ctx context.Context, page int) (*quetzal.Page[quetzal.Workspace], error) {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(perPage))

		if opts.Name != "" {
			query.Set("name", opts.Name)
		}

		if opts.Owner != "" {
			query.Set("owner", opts.Owner)
		}

		if opts.Deleted {
			query.Set("deleted", "true")
		}

		resp, err := c.httpClient.Get(ctx, constants.WorkspacesPath, query)
		if err != nil {
			return nil, err
		}

		var result quetzal.Page[quetzal.Workspace]
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return nil, fmt.Errorf("parsing workspaces page: %w", err)
		}

		return &result, nil
	}
}

// Commit implements quetzal.WorkspacesClient.Commit.
func (c *WorkspacesClient) Commit(ctx context.Context, id int64) (*quetzal.Workspace, error) {
	resp, err := c.httpClient.Put(ctx, workspacePath(id)+"/commit", nil)
	if err != nil {
		return nil, fmt.Errorf("committing workspace: %w", err)
	}

	return decodeWorkspace(resp.Body)
}

// Scan implements quetzal.WorkspacesClient.Scan.
func (c *WorkspacesClient) Scan(ctx context.Context, id int64) (*quetzal.Workspace, error) {
	resp, err := c.httpClient.Put(ctx, workspacePath(id)+"/scan", nil)
	if err != nil {
		return nil, fmt.Errorf("scanning workspace: %w", err)
	}

	return decodeWorkspace(resp.Body)
}

// Delete implements quetzal.WorkspacesClient.Delete.
func (c *WorkspacesClient) Delete(ctx context.Context, id int64) (*quetzal.Workspace, error) {
	resp, err := c.httpClient.Delete(ctx, workspacePath(id))
	if err != nil {
		return nil, fmt.Errorf("deleting workspace: %w", err)
	}

	if len(resp.Body) == 0 {
		return &quetzal.Workspace{ID: id, Status: quetzal.WorkspaceStatusDeleting}, nil
	}

	return decodeWorkspace(resp.Body)
}

// Wait implements quetzal.WorkspacesClient.Wait.
func (c *WorkspacesClient) Wait(
	ctx context.Context,
	id int64,
	keepWaiting func(*quetzal.Workspace) bool,
	opts *quetzal.WaitOptions,
) (*quetzal.Workspace, error) {
	fetch := func(ctx context.Context) (*quetzal.Workspace, error) {
		return c.Get(ctx, id)
	}

	workspace, err := c.poller.Wait(ctx, fetch, keepWaiting, opts)
	if err != nil {
		return nil, fmt.Errorf("waiting for workspace %d: %w", id, err)
	}

	return workspace, nil
}

// WaitWhile implements quetzal.WorkspacesClient.WaitWhile.
func (c *WorkspacesClient) WaitWhile(
	ctx context.Context,
	id int64,
	status quetzal.WorkspaceStatus,
	opts *quetzal.WaitOptions,
) (*quetzal.Workspace, error) {
	return c.Wait(ctx, id, func(workspace *quetzal.Workspace) bool {
		return workspace.Status == status
	}, opts)
}

// Files implements quetzal.WorkspacesClient.Files.
func (c *WorkspacesClient) Files(ctx context.Context, id int64, opts *quetzal.FileListOptions) ([]quetzal.File, int, error) {
	return listFiles(ctx, c.httpClient, workspacePath(id)+"/files/", opts)
}

// File implements quetzal.WorkspacesClient.File.
func (c *WorkspacesClient) File(ctx context.Context, id int64, fileID string) (*quetzal.File, error) {
	return getFile(ctx, c.httpClient, id, fileID)
}

// Upload implements quetzal.WorkspacesClient.Upload. The content is
// streamed and read again from its start on every retry.
func (c *WorkspacesClient) Upload(ctx context.Context, id int64, request *quetzal.UploadRequest) (*quetzal.File, error) {
	if request.Filename == "" {
		return nil, ErrFilenameRequired
	}

	if request.Content == nil {
		return nil, ErrContentRequired
	}

	stream := newMultipartStream(request)
	defer stream.Close()

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:  http.MethodPost,
		Path:    workspacePath(id) + "/files/",
		Stream:  stream.Open,
		Headers: map[string]string{"Content-Type": stream.ContentType()},
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", request.Filename, err)
	}

	return decodeFile(resp.Body)
}

// UpdateMetadata implements quetzal.WorkspacesClient.UpdateMetadata.
func (c *WorkspacesClient) UpdateMetadata(
	ctx context.Context,
	id int64,
	fileID string,
	metadata map[string]map[string]interface{},
) (*quetzal.File, error) {
	if err := quetzal.ValidateFileID(fileID); err != nil {
		return nil, err
	}

	body := map[string]interface{}{"metadata": metadata}

	resp, err := c.httpClient.Patch(ctx, workspacePath(id)+"/files/"+fileID, body)
	if err != nil {
		return nil, fmt.Errorf("updating file metadata: %w", err)
	}

	return decodeFile(resp.Body)
}

func decodeWorkspace(data []byte) (*quetzal.Workspace, error) {
	var workspace quetzal.Workspace

	err := json.Unmarshal(data, &workspace)
	if err != nil {
		return nil, fmt.Errorf("parsing workspace: %w", err)
	}

	return &workspace, nil
}

// multipartStream writes an upload form through a pipe. Every Open starts
// the form over with the same boundary, so the Content-Type header stays
// valid across retries.
type multipartStream struct {
	request  *quetzal.UploadRequest
	boundary string
	reader   *io.PipeReader
	done     chan struct{}
}

func newMultipartStream(request *quetzal.UploadRequest) *multipartStream {
	return &multipartStream{
		request:  request,
		boundary: multipart.NewWriter(io.Discard).Boundary(),
	}
}

func (s *multipartStream) ContentType() string {
	return "multipart/form-data; boundary=" + s.boundary
}

// Open stops the previous writer, rewinds the content and starts a new form.
func (s *multipartStream) Open() (io.Reader, error) {
	s.Close()

	if _, err := s.request.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding upload content: %w", err)
	}

	reader, writer := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = writer.CloseWithError(s.write(writer))
	}()

	s.reader = reader
	s.done = done

	return reader, nil
}

// Close stops the writer of the current form and waits for it.
func (s *multipartStream) Close() {
	if s.reader == nil {
		return
	}

	_ = s.reader.CloseWithError(errStreamReopened)
	<-s.done

	s.reader = nil
	s.done = nil
}

func (s *multipartStream) write(w io.Writer) error {
	form := multipart.NewWriter(w)

	if err := form.SetBoundary(s.boundary); err != nil {
		return fmt.Errorf("setting boundary: %w", err)
	}

	if s.request.Path != "" {
		if err := form.WriteField("path", s.request.Path); err != nil {
			return fmt.Errorf("writing path field: %w", err)
		}
	}

	if s.request.Temporary {
		if err := form.WriteField("temporary", "true"); err != nil {
			return fmt.Errorf("writing temporary field: %w", err)
		}
	}

	part, err := form.CreateFormFile("content", s.request.Filename)
	if err != nil {
		return fmt.Errorf("creating content part: %w", err)
	}

	if _, err := io.Copy(part, s.request.Content); err != nil {
		return fmt.Errorf("copying content: %w", err)
	}

	return form.Close()
}
