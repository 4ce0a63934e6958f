package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"caat-reconciliation/internal/config"
	"caat-reconciliation/internal/gateway"
	"caat-reconciliation/internal/logging"
	"caat-reconciliation/internal/usecase"

	"go.uber.org/zap"
)

func main() {
	// Define command-line flags
	mode := flag.String("mode", "exact", "Reconciliation mode: exact or receivables")
	sourceFile := flag.String("source", "", "Path to the source ledger (exact mode)")
	targetFile := flag.String("target", "", "Path to the target ledger (exact mode)")
	receivablesFile := flag.String("receivables", "", "Path to the accounts receivable ledger (receivables mode)")
	bankFile := flag.String("bank", "", "Path to the bank statement (receivables mode)")
	configFile := flag.String("config", "", "Path to a YAML config file (default ./caat.yaml if present)")
	formatStr := flag.String("format", "json", "Report format: json, yaml or xlsx")
	outFile := flag.String("out", "", "Write the report to this file instead of stdout")
	sheet := flag.String("sheet", "", "Worksheet to read from workbook inputs (default first sheet)")
	flag.Parse()

	// Validate required flags
	var first, second string
	switch *mode {
	case "exact":
		first, second = *sourceFile, *targetFile
	case "receivables":
		first, second = *receivablesFile, *bankFile
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q.\n", *mode)
		flag.Usage()
		os.Exit(2)
	}
	if first == "" || second == "" {
		fmt.Fprintln(os.Stderr, "Error: exact mode needs -source and -target; receivables mode needs -receivables and -bank.")
		flag.Usage()
		os.Exit(2)
	}
	format, err := gateway.ParseFormat(*formatStr)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if format == gateway.FormatXLSX && *outFile == "" {
		log.Fatal("Error: -format xlsx requires -out")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	opts, err := cfg.Options()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// --- Dependency Injection (Wiring the application) ---
	repo := gateway.NewFileTableRepository(*sheet)
	reconciliationUseCase := usecase.NewReconciliationUseCase(repo, opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// --- Execute the Usecase ---
	var report any
	if *mode == "exact" {
		report, err = reconciliationUseCase.ReconcileExact(ctx, first, second)
	} else {
		report, err = reconciliationUseCase.ReconcileReceivables(ctx, first, second)
	}
	if err != nil {
		logger.Fatal("Reconciliation failed", zap.Error(err))
	}

	// --- Present the Output ---
	var w io.Writer = os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			logger.Fatal("Failed to create report file", zap.Error(err))
		}
		defer f.Close()
		w = f
	}
	if err := gateway.WriteReport(w, format, report); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}
	if *outFile != "" {
		logger.Info("Report written", zap.String("path", *outFile), zap.String("format", string(format)))
	}
}
