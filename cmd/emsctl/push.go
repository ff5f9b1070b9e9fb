package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/controlplane-com/pool-orchestrator/pkg/api/actions"
	"github.com/controlplane-com/pool-orchestrator/pkg/dataset"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/s3"
)

// targetFlags are the flags shared by every push command
type targetFlags struct {
	table        string
	connectionID string
	mode         string
	keys         []string
	dropIfExists bool
	force        bool
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "target table name (required)")
	cmd.Flags().StringVar(&f.connectionID, "connection", "", "data connection of the table (default: global scope)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(actions.PushAppend), "replace, append or upsert")
	cmd.Flags().StringSliceVarP(&f.keys, "key", "k", nil, "primary key column for upserts (repeatable)")
	cmd.Flags().BoolVar(&f.dropIfExists, "drop-if-exists", false, "allow replace to drop an existing table")
	cmd.Flags().BoolVar(&f.force, "force", false, "replace without a column config, letting the platform pick column types")
	_ = cmd.MarkFlagRequired("table")
}

func (f *targetFlags) target(poolID string) actions.PushTarget {
	return actions.PushTarget{
		PoolID:       poolID,
		Table:        f.table,
		ConnectionID: f.connectionID,
		Mode:         actions.PushMode(strings.ToLower(f.mode)),
		Keys:         f.keys,
		DropIfExists: f.dropIfExists,
		Force:        f.force,
	}
}

func newPushCSVCmd(poolID *string) *cobra.Command {
	var (
		flags      targetFlags
		configPath string
		deleted    string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "push-csv <file>",
		Short: "Push a CSV file into a data pool table",
		Long:  "Reads a CSV file (- for stdin, .tsv for tab separated) and pushes it into a table. A column config YAML declares column types; without one every value is typed from its content.",
		Example: `  emsctl push-csv activities.csv -t ACTIVITIES -m replace -c columns.yaml --drop-if-exists
  cat changes.csv | emsctl push-csv - -t ACTIVITIES -m upsert -k CASE_ID -k ACTIVITY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var config *dataset.ColumnConfig
			if configPath != "" {
				var err error
				if config, err = dataset.LoadColumnConfig(configPath); err != nil {
					return err
				}
			}

			req := actions.PushRequest{PushTarget: flags.target(*poolID)}
			data, err := readCSV(cmd, args[0], config, !noHeader)
			if err != nil {
				return err
			}
			req.Data = data
			if deleted != "" {
				if req.Deleted, err = readCSV(cmd, deleted, config, !noHeader); err != nil {
					return err
				}
			}
			if config != nil {
				req.ColumnConfig = data.Schema(flags.table).Columns
			}

			return pushTable(cmd, *poolID, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "column config YAML file")
	cmd.Flags().StringVar(&deleted, "deleted", "", "CSV file with the key columns of rows to delete (upsert only)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "the first row is data, not column names")
	return cmd
}

func readCSV(cmd *cobra.Command, path string, config *dataset.ColumnConfig, header bool) (*dataset.Table, error) {
	delimiter := ','
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		delimiter = '\t'
	}

	var input io.Reader
	if path == "-" {
		input = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening CSV file: %w", err)
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		input = f
	}

	opts := dataset.CSVOptions{Delimiter: delimiter, Header: header}
	if config != nil {
		opts.Columns = config.Columns
	}
	return dataset.FromCSV(input, opts)
}

func newPushSQLCmd(poolID *string) *cobra.Command {
	var (
		flags targetFlags
		dsn   string
		query string
	)

	cmd := &cobra.Command{
		Use:   "push-sql",
		Short: "Push the result of a MySQL query into a data pool table",
		Long:  "Runs a query against a MySQL database and pushes the result set. Column types follow the database column types.",
		Example: `  MYSQL_DSN='user:pass@tcp(db:3306)/erp?parseTime=true' \
    emsctl push-sql -t ORDERS -m replace --force --drop-if-exists -q 'SELECT * FROM orders'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("--dsn or MYSQL_DSN is required")
			}
			if query == "" {
				return fmt.Errorf("--query is required")
			}

			db, err := sql.Open("mysql", dsn)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			data, err := queryTable(cmd, db, query)
			if err != nil {
				return err
			}
			req := actions.PushRequest{PushTarget: flags.target(*poolID), Data: data}
			req.ColumnConfig = data.Schema(flags.table).Columns
			return pushTable(cmd, *poolID, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&dsn, "dsn", getEnv("MYSQL_DSN", ""), "MySQL data source name (env MYSQL_DSN)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "SELECT statement producing the rows")
	return cmd
}

func queryTable(cmd *cobra.Command, db *sql.DB, query string) (*dataset.Table, error) {
	rows, err := db.QueryContext(cmd.Context(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()
	return dataset.FromRows(rows)
}

func pushTable(cmd *cobra.Command, poolID string, req actions.PushRequest) error {
	ctx, err := newContext(settingsFromEnv(), poolID)
	if err != nil {
		return err
	}
	result, err := actions.PushTable(cmd.Context(), ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d rows to %s in %d chunks (job %s: %s)\n",
		req.Data.Len(), req.Table, len(result.Chunks)+len(result.Deleted), result.JobID, result.Run.State())
	return nil
}

func newPushS3Cmd(poolID *string) *cobra.Command {
	var (
		flags       targetFlags
		prefix      string
		deleteAfter bool
	)

	cmd := &cobra.Command{
		Use:   "push-s3",
		Short: "Push parquet files from an S3 prefix into a data pool table",
		Long:  "Uploads every .parquet object under a prefix as one chunk of a push job, in key order. Bucket and region come from S3_BUCKET and S3_REGION.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := s3.NewClient(cmd.Context(), s3.ConfigFromEnv())
			if err != nil {
				return err
			}
			ctx, err := newContext(settingsFromEnv(), *poolID)
			if err != nil {
				return err
			}

			result, err := actions.PushObjects(cmd.Context(), ctx, src, actions.ObjectPushRequest{
				PushTarget:  flags.target(*poolID),
				Prefix:      prefix,
				DeleteAfter: deleteAfter,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d files (%d bytes) from s3://%s/%s to %s (job %s: %s)\n",
				len(result.Keys), result.Bytes, src.Bucket(), prefix, flags.table, result.JobID, result.Run.State())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix of the parquet files")
	cmd.Flags().BoolVar(&deleteAfter, "delete-after", false, "delete the objects once the push succeeded")
	return cmd
}
