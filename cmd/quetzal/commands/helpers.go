package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/olekukonko/tablewriter"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
	"github.com/quetzal-org/quetzal-client/pkg/quetzalclient"
)

const (
	NotAvailable = "N/A"

	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
	OutputFormatCSV   = "csv"

	Masked = "***"
)

var (
	ErrInvalidMetadata    = errors.New("invalid metadata, expected a JSON object of families")
	ErrCredentialsMissing = errors.New("username is required to log in (use --username or QUETZAL_USER)")
	ErrFileRequired       = errors.New("a file id or filters are required")
	ErrUploadFailed       = errors.New("one or more uploads failed")
	ErrQueryRequired      = errors.New("query is required")
	ErrQueryTwice         = errors.New("give the query as an argument or with --file, not both")
)

// outputFormat returns the format selected with --output.
func outputFormat() string {
	format := strings.ToLower(viper.GetString("output"))
	if format == "" {
		return OutputFormatTable
	}

	return format
}

// writeOutput encodes value as JSON or YAML, or renders it with fillTable.
func writeOutput(w io.Writer, format string, value interface{}, fillTable func(*tablewriter.Table)) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(value)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(w)
		defer func() { _ = encoder.Close() }()

		return encoder.Encode(value)
	case OutputFormatTable, "":
		table := tablewriter.NewWriter(w)
		fillTable(table)

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnsupportedOutputFmt, format)
	}
}

func workspaceTable(workspaces ...quetzal.Workspace) func(*tablewriter.Table) {
	return func(table *tablewriter.Table) {
		table.Header("ID", "Name", "Owner", "Status", "Temporary", "Description")

		for _, ws := range workspaces {
			_ = table.Append([]string{
				strconv.FormatInt(ws.ID, 10),
				ws.Name,
				ws.Owner,
				string(ws.Status),
				strconv.FormatBool(ws.Temporary),
				ws.Description,
			})
		}
	}
}

func fileTable(files ...quetzal.File) func(*tablewriter.Table) {
	return func(table *tablewriter.Table) {
		table.Header("ID", "Path", "Filename", "Size", "State")

		for _, file := range files {
			base, err := file.Base()
			if err != nil {
				_ = table.Append([]string{file.ID, NotAvailable, NotAvailable, NotAvailable, NotAvailable})

				continue
			}

			_ = table.Append([]string{file.ID, base.Path, base.Filename, strconv.FormatInt(base.Size, 10), base.State})
		}
	}
}

// metadataTable renders one row per family and key.
func metadataTable(file *quetzal.File) func(*tablewriter.Table) {
	return func(table *tablewriter.Table) {
		table.Header("Family", "Key", "Value")

		for _, family := range sortedKeys(file.Metadata) {
			values := file.Metadata[family]
			for _, key := range sortedKeys(values) {
				_ = table.Append([]string{family, key, formatValue(values[key])})
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	}
}

// parseFilters turns key=value pairs into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil //nolint:nilnil // no filters is not an error
	}

	filters := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidFilter, pair)
		}

		filters[key] = strings.TrimSpace(value)
	}

	return filters, nil
}

// parseMetadata decodes a {"family": {"key": value}} document.
func parseMetadata(raw string) (map[string]map[string]interface{}, error) {
	var metadata map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	if len(metadata) == 0 {
		return nil, ErrInvalidMetadata
	}

	return metadata, nil
}

// workspaceSelector holds the flags naming a workspace.
type workspaceSelector struct {
	id    int64
	name  string
	owner string
}

func (s *workspaceSelector) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&s.id, "id", 0, "Workspace ID")
	cmd.Flags().StringVar(&s.name, "name", "", "Workspace name")
	cmd.Flags().StringVar(&s.owner, "owner", "", "Workspace owner when selecting by name (defaults to the username)")
}

func (s *workspaceSelector) validate() error {
	switch {
	case s.id != 0 && s.name != "":
		return constants.ErrWorkspaceIDAndName
	case s.id == 0 && s.name == "":
		return constants.ErrWorkspaceRequired
	default:
		return nil
	}
}

// resolve fetches the selected workspace.
func (s *workspaceSelector) resolve(ctx context.Context, client quetzal.Client) (*quetzal.Workspace, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	if s.id != 0 {
		workspace, err := client.Workspaces().Get(ctx, s.id)
		if err != nil {
			return nil, fmt.Errorf("failed to get workspace %d: %w", s.id, err)
		}

		return workspace, nil
	}

	workspace, err := client.Workspaces().GetByName(ctx, s.name, s.owner)
	if err != nil {
		return nil, fmt.Errorf("failed to find workspace %q: %w", s.name, err)
	}

	return workspace, nil
}

// commandContext returns the command's context bounded by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}

	return context.WithCancel(ctx)
}

// newClient builds a client from flags, environment and config file. The
// returned function releases the notifier connection, if any.
func newClient(ctx context.Context) (quetzal.Client, func(), error) {
	url := viper.GetString("url")
	if url == "" {
		return nil, nil, constants.ErrNoURLConfigured
	}

	logger := newLogger(os.Stderr)

	config := &quetzal.Config{
		URL:                url,
		Username:           viper.GetString("username"),
		Password:           viper.GetString("password"),
		AccessToken:        viper.GetString("token"),
		APIKey:             viper.GetString("api-key"),
		InsecureSkipVerify: viper.GetBool("insecure"),
		PoolSize:           viper.GetInt("pool-size"),
		Debug:              viper.GetBool("verbose"),
		Logger:             logger,
	}

	cleanup := func() {}

	if natsURL := viper.GetString("nats-url"); natsURL != "" {
		notifier, err := quetzalclient.NewNATSNotifier(natsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}

		config.Notifier = notifier
		cleanup = func() {
			if err := notifier.Close(); err != nil {
				logger.Warn("closing NATS connection", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	client, err := quetzalclient.New(ctx, config)
	if err != nil {
		cleanup()

		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, cleanup, nil
}

// hclogAdapter exposes an hclog.Logger as a quetzal.Logger.
type hclogAdapter struct {
	logger hclog.Logger
}

func newLogger(w io.Writer) quetzal.Logger {
	level := hclog.Warn
	if viper.GetBool("verbose") {
		level = hclog.Debug
	}

	return &hclogAdapter{logger: hclog.New(&hclog.LoggerOptions{
		Name:   "quetzal",
		Level:  level,
		Output: w,
	})}
}

func (a *hclogAdapter) Debug(msg string, fields map[string]interface{}) {
	a.logger.Debug(msg, fieldArgs(fields)...)
}

func (a *hclogAdapter) Info(msg string, fields map[string]interface{}) {
	a.logger.Info(msg, fieldArgs(fields)...)
}

func (a *hclogAdapter) Warn(msg string, fields map[string]interface{}) {
	a.logger.Warn(msg, fieldArgs(fields)...)
}

func (a *hclogAdapter) Error(msg string, fields map[string]interface{}) {
	a.logger.Error(msg, fieldArgs(fields)...)
}

func fieldArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, key := range sortedKeys(fields) {
		args = append(args, key, fields[key])
	}

	return args
}

// waitForWorkspace blocks while the workspace is in status. A spinner shows
// progress when the output is a table.
func waitForWorkspace(
	ctx context.Context,
	client quetzal.Client,
	workspace *quetzal.Workspace,
	status quetzal.WorkspaceStatus,
	format string,
) (*quetzal.Workspace, error) {
	if format != OutputFormatTable {
		return client.Workspaces().WaitWhile(ctx, workspace.ID, status, nil)
	}

	spinner, err := pterm.DefaultSpinner.Start(fmt.Sprintf("Workspace %s is %s", workspace.Name, status))
	if err != nil {
		return client.Workspaces().WaitWhile(ctx, workspace.ID, status, nil)
	}

	final, err := client.Workspaces().WaitWhile(ctx, workspace.ID, status, &quetzal.WaitOptions{
		OnProgress: func(current *quetzal.Workspace) {
			spinner.UpdateText(fmt.Sprintf("Workspace %s is %s", current.Name, current.Status))
		},
	})
	if err != nil {
		spinner.Fail(fmt.Sprintf("Waiting for workspace %s failed", workspace.Name))

		return nil, err
	}

	if final.Status == quetzal.WorkspaceStatusError {
		spinner.Fail(fmt.Sprintf("Workspace %s is %s", final.Name, final.Status))
	} else {
		spinner.Success(fmt.Sprintf("Workspace %s is %s", final.Name, final.Status))
	}

	return final, nil
}
