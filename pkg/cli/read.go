package cli

import (
	"github.com/spf13/cobra"

	"github.com/getmockd/pipeline/pkg/cli/internal/output"
	"github.com/getmockd/pipeline/pkg/cli/internal/parse"
	"github.com/getmockd/pipeline/pkg/pipe"
)

var readCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Read a whole collection or one record",
	Long: `Read a whole collection, or the record with the given identity.

Examples:
  pipectl read -c users --base-url http://localhost:8080
  pipectl read 42 -c users`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		payload, err := run(ctx, func(p *pipe.Pipe, ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
			if len(args) == 1 {
				return p.Read(ctx, args[0], ok, fail)
			}
			return p.ReadAll(ctx, ok, fail)
		})
		if err != nil {
			return err
		}
		return output.JSON(cmd.OutOrStdout(), payload)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [key=value...]",
	Short: "Read the records matching parameters",
	Long: `Read the records matching the given parameters. Without parameters, the
collection's default parameters from the manifest are sent.

Examples:
  pipectl query role=admin limit=10 -c users`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parse.Params(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		payload, err := run(ctx, func(p *pipe.Pipe, ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
			return p.ReadWithParams(ctx, params, ok, fail)
		})
		if err != nil {
			return err
		}
		return output.JSON(cmd.OutOrStdout(), payload)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(queryCmd)
}
