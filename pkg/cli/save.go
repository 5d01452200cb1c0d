package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/pipeline/pkg/cli/internal/output"
	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
)

var saveCmd = &cobra.Command{
	Use:   "save <json|->",
	Short: "Create or update a record",
	Long: `Create or update a record. A record carrying the identity field is
updated in place (PUT); one without it is created (POST). Pass - to read
the record from stdin.

Examples:
  pipectl save '{"name": "Alice"}' -c users
  echo '{"id": 7, "name": "Bob"}' | pipectl save - -c users`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := readRecord(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		payload, err := run(ctx, func(p *pipe.Pipe, ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
			return p.Save(ctx, rec, ok, fail)
		})
		if err != nil {
			return err
		}
		return output.JSON(cmd.OutOrStdout(), payload)
	},
}

func readRecord(stdin io.Reader, arg string) (collection.Record, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	}
	var rec collection.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid record JSON: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("invalid record JSON: expected an object")
	}
	return rec, nil
}

func init() {
	rootCmd.AddCommand(saveCmd)
}
