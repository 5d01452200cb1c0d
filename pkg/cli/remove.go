package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a record",
	Long: `Remove the record with the given identity.

Examples:
  pipectl remove 42 -c users`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, err := run(ctx, func(p *pipe.Pipe, ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
			rec := collection.Record{p.Config().IdentityField(): args[0]}
			return p.Remove(ctx, rec, ok, fail)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
