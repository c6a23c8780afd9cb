package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool

	// export/report flags
	family    string
	format    string
	output    string
	period    string
	groupBy   string
	workOrder string
	assetID   string
	lubricant string
	dateFrom  string
	dateTo    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lubeqc",
	Short: "lubeqc - lubrication QA/QC consumption tracking",
	Long: `lubeqc records grease and oil consumption per work order and asset,
aggregates it against annual targets and serves the inspection checklist.

Run without arguments to start the HTTP host.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP host",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import consumption records from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export consumption records as CSV or XLSX",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an aggregated consumption report as JSON",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	for _, cmd := range []*cobra.Command{exportCmd, reportCmd} {
		cmd.Flags().StringVar(&family, "family", "", "grease or oil")
		cmd.Flags().StringVar(&workOrder, "wo", "", "work order substring")
		cmd.Flags().StringVar(&assetID, "asset", "", "exact asset id")
		cmd.Flags().StringVar(&lubricant, "type", "", "exact lubricant type")
		cmd.Flags().StringVar(&dateFrom, "from", "", "inclusive start date")
		cmd.Flags().StringVar(&dateTo, "to", "", "inclusive end date")
	}
	exportCmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	reportCmd.Flags().StringVar(&period, "period", "month", "month, year or fiveYear")
	reportCmd.Flags().StringVar(&groupBy, "group-by", "total", "total, lubricantType or assetId")
	_ = reportCmd.MarkFlagRequired("family")

	rootCmd.AddCommand(serveCmd, importCmd, exportCmd, reportCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
