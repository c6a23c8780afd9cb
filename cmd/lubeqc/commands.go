package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/consumption/csvio"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/providers/xlsx"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(serverModules())
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, _, err := startCore(commandContext(cmd))
	if err != nil {
		return err
	}
	stopCore(app)
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer file.Close()

	ctx := commandContext(cmd)
	app, svc, err := startCore(ctx)
	if err != nil {
		return err
	}
	defer stopCore(app)

	result, err := svc.Consumption.Import(ctx, file)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s), dropped %d\n", result.Imported, result.Dropped)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	fam, err := optionalFamily(family)
	if err != nil {
		return err
	}
	criteria, err := criteriaFromFlags()
	if err != nil {
		return err
	}
	exportFormat := strings.ToLower(strings.TrimSpace(format))
	if exportFormat != "csv" && exportFormat != "xlsx" {
		return fmt.Errorf("unsupported format %q", format)
	}

	ctx := commandContext(cmd)
	app, svc, err := startCore(ctx)
	if err != nil {
		return err
	}
	defer stopCore(app)

	var records []consumptiondomain.Record
	if fam != "" {
		records, err = svc.Report.Records(ctx, fam, criteria)
	} else {
		records, err = svc.Consumption.Query(ctx, criteria)
	}
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}

	w, closeFn, err := openOutput(cmd, output)
	if err != nil {
		return err
	}
	defer closeFn()

	if exportFormat == "xlsx" {
		return xlsx.WriteRecords(w, records, nil)
	}
	return csvio.Encode(w, records)
}

func runReport(cmd *cobra.Command, args []string) error {
	req, err := reportRequestFromFlags()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	app, svc, err := startCore(ctx)
	if err != nil {
		return err
	}
	defer stopCore(app)

	report, err := svc.Report.Build(ctx, req)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

func reportRequestFromFlags() (reportdomain.Request, error) {
	fam, err := catalog.ParseFamily(family)
	if err != nil {
		return reportdomain.Request{}, fmt.Errorf("--family: %w", err)
	}
	p, err := reportdomain.ParsePeriod(period)
	if err != nil {
		return reportdomain.Request{}, fmt.Errorf("--period: %w", err)
	}
	g, err := reportdomain.ParseGroupBy(groupBy)
	if err != nil {
		return reportdomain.Request{}, fmt.Errorf("--group-by: %w", err)
	}
	criteria, err := criteriaFromFlags()
	if err != nil {
		return reportdomain.Request{}, err
	}
	return reportdomain.Request{Family: fam, Period: p, GroupBy: g, Criteria: criteria}, nil
}

func criteriaFromFlags() (consumptiondomain.Criteria, error) {
	from, err := optionalDate("--from", dateFrom)
	if err != nil {
		return consumptiondomain.Criteria{}, err
	}
	to, err := optionalDate("--to", dateTo)
	if err != nil {
		return consumptiondomain.Criteria{}, err
	}
	return consumptiondomain.Criteria{
		WorkOrderContains: strings.TrimSpace(workOrder),
		AssetEquals:       strings.TrimSpace(assetID),
		LubricantType:     strings.TrimSpace(lubricant),
		DateFrom:          from,
		DateTo:            to,
	}, nil
}

func optionalFamily(raw string) (catalog.Family, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	fam, err := catalog.ParseFamily(raw)
	if err != nil {
		return "", fmt.Errorf("--family: %w", err)
	}
	return fam, nil
}

func optionalDate(flag, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, ok := consumptiondomain.ParseTimestamp(raw)
	if !ok {
		return nil, fmt.Errorf("%s: invalid date %q", flag, raw)
	}
	return &parsed, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if strings.TrimSpace(path) == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return file, func() { _ = file.Close() }, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
