package cli

import (
	"strconv"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *App) newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the step actions a suite can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := actions.NewDefaultRegistry(false)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(a.Stdout)
			table.SetHeader([]string{"Action", "Provider", "Retryable", "Description"})
			table.SetAutoWrapText(false)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			for _, name := range registry.Names() {
				def, err := registry.Get(name)
				if err != nil {
					return err
				}
				table.Append([]string{name, registry.Provider(name), strconv.FormatBool(def.Retryable), def.Description})
			}
			table.Render()
			return nil
		},
	}
}
