package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cattle-report",
	Short: "Formulario de reporte de casos de enfermedades del ganado",
	Long: `Sirve el formulario web de reporte de casos y habla con el backend de casos
(diseases/ y api/). La configuración sale de .env o del entorno.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, diseasesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
