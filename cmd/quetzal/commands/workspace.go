package commands

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// NewWorkspaceCommand creates the workspace command group
func NewWorkspaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"workspaces", "ws"},
		Short:   "Manage workspaces",
		Long:    "Create, list, commit, scan and delete Quetzal workspaces and manage their files",
	}

	cmd.AddCommand(newWorkspaceCreateCommand())
	cmd.AddCommand(newWorkspaceListCommand())
	cmd.AddCommand(newWorkspaceDetailsCommand())
	cmd.AddCommand(newWorkspaceTransitionCommand("commit", "Commit a workspace", quetzal.WorkspaceStatusCommitting,
		func(ctx context.Context, ws quetzal.WorkspacesClient, id int64) (*quetzal.Workspace, error) {
			return ws.Commit(ctx, id)
		}))
	cmd.AddCommand(newWorkspaceTransitionCommand("scan", "Scan the files of a workspace", quetzal.WorkspaceStatusScanning,
		func(ctx context.Context, ws quetzal.WorkspacesClient, id int64) (*quetzal.Workspace, error) {
			return ws.Scan(ctx, id)
		}))
	cmd.AddCommand(newWorkspaceTransitionCommand("delete", "Delete a workspace", quetzal.WorkspaceStatusDeleting,
		func(ctx context.Context, ws quetzal.WorkspacesClient, id int64) (*quetzal.Workspace, error) {
			return ws.Delete(ctx, id)
		}))
	cmd.AddCommand(newWorkspaceFilesCommand())
	cmd.AddCommand(newWorkspaceUploadCommand())
	cmd.AddCommand(newWorkspaceUpdateMetadataCommand())

	return cmd
}

func newWorkspaceCreateCommand() *cobra.Command {
	var (
		description string
		families    []string
		temporary   bool
		wait        bool
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a workspace",
		Long: `Create a workspace.

Families are given as name or name:version. The base family is always
included; a missing version means the latest one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := quetzal.ParseFamilies(families)
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

			workspace, err := client.Workspaces().Create(ctx, &quetzal.WorkspaceCreateRequest{
				Name:        args[0],
				Description: description,
				Families:    versions,
				Temporary:   temporary,
			})
			if err != nil {
				return fmt.Errorf("failed to create workspace: %w", err)
			}

			format := outputFormat()

			if wait {
				workspace, err = waitForWorkspace(ctx, client, workspace, quetzal.WorkspaceStatusInitializing, format)
				if err != nil {
					return err
				}
			}

			return writeOutput(cmd.OutOrStdout(), format, workspace, workspaceTable(*workspace))
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Workspace description (required)")
	cmd.Flags().StringSliceVarP(&families, "family", "f", nil, "Family as name or name:version (repeatable)")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "Create a temporary workspace")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the workspace is initialized")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func newWorkspaceListCommand() *cobra.Command {
	var (
		name    string
		owner   string
		deleted bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return constants.ErrNonPositiveLimit
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			workspaces, total, err := client.Workspaces().List(ctx, &quetzal.WorkspaceListOptions{
				Name:    name,
				Owner:   owner,
				Deleted: deleted,
				Limit:   limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list workspaces: %w", err)
			}

			format := outputFormat()
			if err := writeOutput(cmd.OutOrStdout(), format, workspaces, workspaceTable(workspaces...)); err != nil {
				return err
			}

			if format == OutputFormatTable && total > len(workspaces) {
				fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d workspaces\n", len(workspaces), total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by name")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "Include deleted workspaces")
	cmd.Flags().IntVarP(&limit, "limit", "l", constants.DefaultListLimit, "Maximum number of workspaces")

	return cmd
}

func newWorkspaceDetailsCommand() *cobra.Command {
	var selector workspaceSelector

	cmd := &cobra.Command{
		Use:   "details",
		Short: "Show a workspace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := selector.validate(); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			workspace, err := selector.resolve(ctx, client)
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), outputFormat(), workspace, workspaceTable(*workspace))
		},
	}

	selector.register(cmd)

	return cmd
}

type workspaceTransition func(ctx context.Context, workspaces quetzal.WorkspacesClient, id int64) (*quetzal.Workspace, error)

// newWorkspaceTransitionCommand builds commit, scan and delete, which differ
// only by their call and the status they wait out.
func newWorkspaceTransitionCommand(use, short string, transient quetzal.WorkspaceStatus, transition workspaceTransition) *cobra.Command {
	var (
		selector workspaceSelector
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := selector.validate(); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			workspace, err := selector.resolve(ctx, client)
			if err != nil {
				return err
			}

			updated, err := transition(ctx, client.Workspaces(), workspace.ID)
			if err != nil {
				return fmt.Errorf("failed to %s workspace %d: %w", use, workspace.ID, err)
			}

			format := outputFormat()

			if wait {
				updated, err = waitForWorkspace(ctx, client, updated, transient, format)
				if err != nil {
					return err
				}
			}

			return writeOutput(cmd.OutOrStdout(), format, updated, workspaceTable(*updated))
		},
	}

	selector.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, fmt.Sprintf("Wait while the workspace is %s", transient))

	return cmd
}

func newWorkspaceFilesCommand() *cobra.Command {
	var (
		selector workspaceSelector
		filters  []string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the files of a workspace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := selector.validate(); err != nil {
				return err
			}

			parsed, err := parseFilters(filters)
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

			workspace, err := selector.resolve(ctx, client)
			if err != nil {
				return err
			}

			files, _, err := client.Workspaces().Files(ctx, workspace.ID, &quetzal.FileListOptions{Filters: parsed, Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), outputFormat(), files, fileTable(files...))
		},
	}

	selector.register(cmd)
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "l", constants.DefaultListLimit, "Maximum number of files")

	return cmd
}

func newWorkspaceUploadCommand() *cobra.Command {
	var (
		selector  workspaceSelector
		remoteDir string
		temporary bool
	)

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload files to a workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := selector.validate(); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			workspace, err := selector.resolve(ctx, client)
			if err != nil {
				return err
			}

			uploaded, err := uploadFiles(ctx, client.Workspaces(), workspace.ID, args, remoteDir, temporary)
			if len(uploaded) > 0 {
				if outErr := writeOutput(cmd.OutOrStdout(), outputFormat(), uploaded, fileTable(uploaded...)); outErr != nil {
					return outErr
				}
			}

			return err
		},
	}

	selector.register(cmd)
	cmd.Flags().StringVar(&remoteDir, "path", "", "Directory of the files inside the workspace")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "Upload as temporary files")

	return cmd
}

// uploadFiles uploads every local file and collects failures instead of
// stopping at the first one.
func uploadFiles(
	ctx context.Context,
	workspaces quetzal.WorkspacesClient,
	id int64,
	localPaths []string,
	remoteDir string,
	temporary bool,
) ([]quetzal.File, error) {
	var (
		uploaded []quetzal.File
		result   *multierror.Error
	)

	for _, localPath := range localPaths {
		file, err := uploadFile(ctx, workspaces, id, localPath, remoteDir, temporary)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", localPath, err))

			continue
		}

		uploaded = append(uploaded, *file)
	}

	if err := result.ErrorOrNil(); err != nil {
		return uploaded, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	return uploaded, nil
}

func uploadFile(
	ctx context.Context,
	workspaces quetzal.WorkspacesClient,
	id int64,
	localPath, remoteDir string,
	temporary bool,
) (*quetzal.File, error) {
	content, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = content.Close() }()

	return workspaces.Upload(ctx, id, &quetzal.UploadRequest{
		Filename:  filepath.Base(localPath),
		Path:      path.Clean("/" + remoteDir),
		Temporary: temporary,
		Content:   content,
	})
}

func newWorkspaceUpdateMetadataCommand() *cobra.Command {
	var (
		selector workspaceSelector
		metadata string
	)

	cmd := &cobra.Command{
		Use:   "update-metadata FILE_ID",
		Short: "Update the metadata of a workspace file",
		Long: `Update the metadata of a workspace file.

The metadata is a JSON object keyed by family, for example:
  --metadata '{"iris": {"sepal_length": 5.1}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := selector.validate(); err != nil {
				return err
			}

			if err := quetzal.ValidateFileID(args[0]); err != nil {
				return err
			}

			parsed, err := parseMetadata(metadata)
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

			workspace, err := selector.resolve(ctx, client)
			if err != nil {
				return err
			}

			file, err := client.Workspaces().UpdateMetadata(ctx, workspace.ID, args[0], parsed)
			if err != nil {
				return fmt.Errorf("failed to update metadata: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), outputFormat(), file, metadataTable(file))
		},
	}

	selector.register(cmd)
	cmd.Flags().StringVarP(&metadata, "metadata", "m", "", "Metadata as a JSON object keyed by family (required)")
	_ = cmd.MarkFlagRequired("metadata")

	return cmd
}
