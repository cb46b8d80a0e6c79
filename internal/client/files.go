package client

import (
	"context"
	"crypto/md5" // #nosec G501 -- the API publishes MD5 checksums
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	internalhttp "github.com/quetzal-org/quetzal-client/internal/http"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// Static errors for err113 compliance.
var (
	ErrFileRequired = errors.New("a file id or filters are required")
)

// FilesClient implements quetzal.FilesClient.
type FilesClient struct {
	httpClient *internalhttp.Client
	fs         afero.Fs
	logger     quetzal.Logger
}

// NewFilesClient creates a new files client writing downloads to fs.
func NewFilesClient(httpClient *internalhttp.Client, fs afero.Fs, logger quetzal.Logger) *FilesClient {
	return &FilesClient{
		httpClient: httpClient,
		fs:         fs,
		logger:     logger,
	}
}

func filesPath(workspaceID int64) string {
	if workspaceID == 0 {
		return constants.FilesPath
	}

	return workspacePath(workspaceID) + "/files/"
}

// List implements quetzal.FilesClient.List for public files.
func (c *FilesClient) List(ctx context.Context, opts *quetzal.FileListOptions) ([]quetzal.File, int, error) {
	return listFiles(ctx, c.httpClient, constants.FilesPath, opts)
}

// Get implements quetzal.FilesClient.Get.
func (c *FilesClient) Get(ctx context.Context, workspaceID int64, fileID string) (*quetzal.File, error) {
	return getFile(ctx, c.httpClient, workspaceID, fileID)
}

// Find implements quetzal.FilesClient.Find.
func (c *FilesClient) Find(ctx context.Context, workspaceID int64, filters map[string]string) (*quetzal.File, error) {
	files, total, err := listFiles(ctx, c.httpClient, filesPath(workspaceID), &quetzal.FileListOptions{
		Filters: filters,
		Limit:   2,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case len(files) == 0:
		return nil, fmt.Errorf("%w: %s", constants.ErrFileNotFound, formatFilters(filters))
	case total > 1 || len(files) > 1:
		return nil, fmt.Errorf("%w: %s (%d files)", constants.ErrSeveralFilesMatch, formatFilters(filters), total)
	}

	return &files[0], nil
}

// Read implements quetzal.FilesClient.Read.
func (c *FilesClient) Read(ctx context.Context, workspaceID int64, fileID string, w io.Writer) error {
	if err := quetzal.ValidateFileID(fileID); err != nil {
		return err
	}

	_, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:  http.MethodGet,
		Path:    filesPath(workspaceID) + fileID,
		Headers: map[string]string{"Accept": constants.ContentTypeOctetStream},
		Output:  w,
	})
	if err != nil {
		return fmt.Errorf("downloading file %s: %w", fileID, err)
	}

	return nil
}

// Download implements quetzal.FilesClient.Download.
func (c *FilesClient) Download(ctx context.Context, request *quetzal.DownloadRequest) (string, error) {
	if request.OutputDir == "" {
		return "", constants.ErrOutputDirRequired
	}

	if request.FileID != "" && len(request.Filters) > 0 {
		return "", constants.ErrFileIDAndFilters
	}

	file, err := c.resolve(ctx, request)
	if err != nil {
		return "", err
	}

	base, err := file.Base()
	if err != nil {
		return "", err
	}

	target := localPath(request.OutputDir, base)

	if c.upToDate(target, base) {
		c.logger.Info("file already downloaded", map[string]interface{}{
			"file": base.ID,
			"path": target,
		})

		return target, nil
	}

	if err := c.fs.MkdirAll(filepath.Dir(target), constants.ConfigDirPerm); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	if err := c.writeFile(ctx, request.WorkspaceID, file.ID, target); err != nil {
		return "", err
	}

	c.logger.Debug("file downloaded", map[string]interface{}{
		"file": base.ID,
		"path": target,
	})

	return target, nil
}

func (c *FilesClient) resolve(ctx context.Context, request *quetzal.DownloadRequest) (*quetzal.File, error) {
	switch {
	case request.FileID != "":
		return c.Get(ctx, request.WorkspaceID, request.FileID)
	case len(request.Filters) > 0:
		return c.Find(ctx, request.WorkspaceID, request.Filters)
	default:
		return nil, ErrFileRequired
	}
}

// writeFile downloads into a temporary file next to target and renames it
// once complete.
func (c *FilesClient) writeFile(ctx context.Context, workspaceID int64, fileID, target string) error {
	tmp, err := afero.TempFile(c.fs, filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	tmpName := tmp.Name()

	err = c.Read(ctx, workspaceID, fileID, tmp)

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = c.fs.Remove(tmpName)

		return err
	}

	if err := c.fs.Chmod(tmpName, constants.DownloadFilePerm); err != nil {
		_ = c.fs.Remove(tmpName)

		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := c.fs.Rename(tmpName, target); err != nil {
		_ = c.fs.Remove(tmpName)

		return fmt.Errorf("moving download into place: %w", err)
	}

	return nil
}

// upToDate reports whether target already holds the file described by base.
func (c *FilesClient) upToDate(target string, base *quetzal.BaseMetadata) bool {
	info, err := c.fs.Stat(target)
	if err != nil || info.IsDir() || info.Size() != base.Size || base.Checksum == "" {
		return false
	}

	sum, err := md5sum(c.fs, target)
	if err != nil {
		return false
	}

	return strings.EqualFold(sum, base.Checksum)
}

func md5sum(fs afero.Fs, name string) (string, error) {
	file, err := fs.Open(name)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", name, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hash := md5.New() // #nosec G401 -- integrity check against a server checksum
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", name, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// localPath places a file under dir following its base path. The server path
// cannot escape dir.
func localPath(dir string, base *quetzal.BaseMetadata) string {
	rel := filepath.Clean(string(os.PathSeparator) + filepath.FromSlash(base.Path))

	return filepath.Join(dir, rel, filepath.Base(base.Filename))
}

func listFiles(ctx context.Context, httpClient *internalhttp.Client, path string, opts *quetzal.FileListOptions) ([]quetzal.File, int, error) {
	if opts == nil {
		opts = &quetzal.FileListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}

	perPage := min(limit, constants.MaxPageSize)

	fetch := func(ctx context.Context, page int) (*quetzal.Page[quetzal.File], error) {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(perPage))

		if len(opts.Filters) > 0 {
			query.Set("filters", formatFilters(opts.Filters))
		}

		resp, err := httpClient.Get(ctx, path, query)
		if err != nil {
			return nil, err
		}

		var result quetzal.Page[quetzal.File]
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return nil, fmt.Errorf("parsing files page: %w", err)
		}

		return &result, nil
	}

	files, total, err := quetzal.Collect(ctx, fetch, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing files: %w", err)
	}

	return files, total, nil
}

func getFile(ctx context.Context, httpClient *internalhttp.Client, workspaceID int64, fileID string) (*quetzal.File, error) {
	if err := quetzal.ValidateFileID(fileID); err != nil {
		return nil, err
	}

	resp, err := httpClient.Get(ctx, filesPath(workspaceID)+fileID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}

	return decodeFile(resp.Body)
}

func decodeFile(data []byte) (*quetzal.File, error) {
	var file quetzal.File

	err := json.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	return &file, nil
}

// formatFilters renders filters as "k=v,k2=v2" in key order.
func formatFilters(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+filters[key])
	}

	return strings.Join(pairs, ",")
}
