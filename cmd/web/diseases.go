package main

import (
	"fmt"
	"text/tabwriter"

	"cattle-case-report/internal/adapters/casesapi/remote"
	"cattle-case-report/internal/platform/config"

	"github.com/spf13/cobra"
)

// diseasesCmd consulta el listado del backend, útil para verificar CASES_API_URL.
var diseasesCmd = &cobra.Command{
	Use:   "diseases",
	Short: "Lista las enfermedades que expone el backend de casos",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		backend, err := remote.NewClient(remote.Config{
			BaseURL: cfg.CasesAPIURL,
			Timeout: cfg.CasesAPITimeout,
		})
		if err != nil {
			return err
		}

		list, err := backend.ListDiseases(cmd.Context())
		if err != nil {
			return fmt.Errorf("list diseases: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME")
		for _, d := range list {
			fmt.Fprintf(tw, "%d\t%s\n", d.ID, d.Name)
		}
		return tw.Flush()
	},
}
