package commands

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// NewFileCommand creates the file command group
func NewFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "file",
		Aliases: []string{"files"},
		Short:   "Read files",
		Long:    "Show the metadata of a file or download it. Without --id or --name, public committed files are used.",
	}

	cmd.AddCommand(newFileMetadataCommand())
	cmd.AddCommand(newFileDownloadCommand())

	return cmd
}

// fileSelector names a file by id or by metadata filters, in public data or
// in a workspace.
type fileSelector struct {
	workspace workspaceSelector
	fileID    string
	filters   []string
}

func (s *fileSelector) register(cmd *cobra.Command) {
	s.workspace.register(cmd)
	cmd.Flags().StringVar(&s.fileID, "file-id", "", "File ID")
	cmd.Flags().StringSliceVar(&s.filters, "filter", nil, "Metadata filter as key=value when no file ID is given (repeatable)")
}

func (s *fileSelector) hasWorkspace() bool {
	return s.workspace.id != 0 || s.workspace.name != ""
}

func newFileMetadataCommand() *cobra.Command {
	var selector fileSelector

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Show the metadata of a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := parseFilters(selector.filters)
			if err != nil {
				return err
			}

			switch {
			case selector.fileID != "" && len(filters) > 0:
				return constants.ErrFileIDAndFilters
			case selector.fileID == "" && len(filters) == 0:
				return ErrFileRequired
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var workspaceID int64
			if selector.hasWorkspace() {
				workspace, err := selector.workspace.resolve(ctx, client)
				if err != nil {
					return err
				}

				workspaceID = workspace.ID
			}

			var file *quetzal.File
			if selector.fileID != "" {
				file, err = client.Files().Get(ctx, workspaceID, selector.fileID)
			} else {
				file, err = client.Files().Find(ctx, workspaceID, filters)
			}

			if err != nil {
				return fmt.Errorf("failed to get file: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), outputFormat(), file, metadataTable(file))
		},
	}

	selector.register(cmd)

	return cmd
}

// DownloadResult reports where a file was stored.
type DownloadResult struct {
	FileID string `json:"file_id,omitempty" yaml:"file_id,omitempty"`
	Path   string `json:"path"              yaml:"path"`
}

func newFileDownloadCommand() *cobra.Command {
	var (
		selector  fileSelector
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a file",
		Long: `Download a file into <output-dir>/<path>/<filename>.

A local file with the same checksum and size is kept as is.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := parseFilters(selector.filters)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var workspaceID int64
			if selector.hasWorkspace() {
				workspace, err := selector.workspace.resolve(ctx, client)
				if err != nil {
					return err
				}

				workspaceID = workspace.ID
			}

			path, err := client.Files().Download(ctx, &quetzal.DownloadRequest{
				WorkspaceID: workspaceID,
				FileID:      selector.fileID,
				Filters:     filters,
				OutputDir:   outputDir,
			})
			if err != nil {
				return fmt.Errorf("failed to download file: %w", err)
			}

			result := DownloadResult{FileID: selector.fileID, Path: path}

			return writeOutput(cmd.OutOrStdout(), outputFormat(), result, func(table *tablewriter.Table) {
				table.Header("Property", "Value")

				if result.FileID != "" {
					_ = table.Append("File ID", result.FileID)
				}

				_ = table.Append("Path", result.Path)
			})
		},
	}

	selector.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", ".", "Directory to download into")

	return cmd
}
