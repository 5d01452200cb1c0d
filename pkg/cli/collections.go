package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/pipeline/pkg/cli/internal/output"
)

var collectionsJSON bool

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the collections declared in the manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := settings.manifest
		if m == nil {
			return ErrNoManifest
		}

		type row struct {
			Name          string `json:"name"`
			Type          string `json:"type"`
			URL           string `json:"url"`
			IdentityField string `json:"identityField"`
		}
		rows := make([]row, 0, len(m.Collections))
		for _, name := range m.Names() {
			cfg, err := m.Config(name)
			if err != nil {
				return err
			}
			u := "-"
			if cfg.URL() != nil {
				u = cfg.URL().String()
			}
			rows = append(rows, row{Name: name, Type: cfg.Type(), URL: u, IdentityField: cfg.IdentityField()})
		}

		if collectionsJSON {
			return output.JSON(cmd.OutOrStdout(), rows)
		}
		w := output.Table(cmd.OutOrStdout())
		fmt.Fprintln(w, "NAME\tTYPE\tURL\tID FIELD")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Type, r.URL, r.IdentityField)
		}
		return w.Flush()
	},
}

func init() {
	collectionsCmd.Flags().BoolVar(&collectionsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(collectionsCmd)
}
