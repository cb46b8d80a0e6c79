package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	var (
		selector  workspaceSelector
		file      string
		dialect   string
		limit     int
		all       bool
		selected []string
	)

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run an SQL query",
		Long: `Run an SQL query over public data, or over a workspace with --id or --name.

The query is read from the argument, from --file, or from stdin when neither
is given. Results are printed as a table, json, yaml or csv.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readQuery(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			if all {
				limit = 0
			} else if limit <= 0 {
				return constants.ErrNonPositiveLimit
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var workspaceID int64
			if selector.id != 0 || selector.name != "" {
				workspace, err := selector.resolve(ctx, client)
				if err != nil {
					return err
				}

				workspaceID = workspace.ID
			}

			result, err := client.Queries().Run(ctx, workspaceID, sql, &quetzal.QueryOptions{Dialect: dialect, Limit: limit})
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			columns := selected
			if len(columns) == 0 {
				columns = resultColumns(result.Rows)
			}

			return writeQueryResult(cmd.OutOrStdout(), outputFormat(), result, columns)
		},
	}

	selector.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	cmd.Flags().StringVar(&dialect, "dialect", constants.DefaultQueryDialect, "Query dialect")
	cmd.Flags().IntVarP(&limit, "limit", "l", constants.DefaultListLimit, "Maximum number of rows")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every row")
	cmd.Flags().StringSliceVar(&selected, "columns", nil, "Columns to print, in order")

	return cmd
}

func readQuery(stdin io.Reader, args []string, file string) (string, error) {
	var (
		data []byte
		err  error
	)

	switch {
	case len(args) == 1 && file != "":
		return "", ErrQueryTwice
	case len(args) == 1:
		data = []byte(args[0])
	case file != "":
		data, err = os.ReadFile(filepath.Clean(file))
	default:
		data, err = io.ReadAll(stdin)
	}

	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}

	sql := strings.TrimSpace(string(data))
	if sql == "" {
		return "", ErrQueryRequired
	}

	return sql, nil
}

// resultColumns lists the columns of the first row in a stable order.
func resultColumns(rows []map[string]interface{}) []string {
	if len(rows) == 0 {
		return nil
	}

	return sortedKeys(rows[0])
}

func writeQueryResult(w io.Writer, format string, result *quetzal.QueryResult, columns []string) error {
	if format == OutputFormatCSV {
		return writeCSV(w, result.Rows, columns)
	}

	if err := writeOutput(w, format, result, func(table *tablewriter.Table) {
		header := make([]any, len(columns))
		for i, column := range columns {
			header[i] = column
		}

		table.Header(header...)

		for _, row := range result.Rows {
			_ = table.Append(rowValues(row, columns))
		}
	}); err != nil {
		return err
	}

	if format == OutputFormatTable && result.Total > len(result.Rows) {
		fmt.Fprintf(w, "Showing %d of %d rows\n", len(result.Rows), result.Total)
	}

	return nil
}

func writeCSV(w io.Writer, rows []map[string]interface{}, columns []string) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range rows {
		if err := writer.Write(rowValues(row, columns)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func rowValues(row map[string]interface{}, columns []string) []string {
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = formatValue(row[column])
	}

	return values
}
