package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/dvloznov/card-ledger/internal/reports"
	"github.com/dvloznov/card-ledger/internal/store"
)

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{"period", "Show the billing cycle of a card for a month", runPeriod},
	{"plan", "Plan the installments of a purchase", runPlan},
	{"generate-bills", "Recompute bills for every active card (or one card)", runGenerateBills},
	{"repair-installments", "Detect and fix inconsistent installment groups", runRepairInstallments},
	{"pay", "Record a payment against a bill", runPay},
	{"show-report", "Print a stored repair report", runShowReport},
}

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		ctx = logger.WithContext(ctx, log)

		if err := cmd.run(ctx, os.Args[2:], os.Stdout); err != nil {
			if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			log.Fatal().Err(err).Str("command", name).Msg("Command failed")
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Card Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	for _, cmd := range commands {
		fmt.Printf("  %-20s %s\n", cmd.name, cmd.usage)
	}
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openStore parses the shared store flags and connects the backend. The log
// level flag replaces the logger in ctx.
func openStore(ctx context.Context, cfg *config.Config) (context.Context, store.Backend, error) {
	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		return ctx, nil, err
	}
	ctx = logger.WithContext(ctx, log)

	backend, err := store.Open(ctx, *cfg)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, backend, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func today() civil.Date {
	return calendar.Today(time.Local)
}

func runPeriod(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.FromEnv()
	fs := flag.NewFlagSet("period", flag.ContinueOnError)
	cfg.RegisterStoreFlags(fs)
	cardID := fs.String("card", "", "Card ID to read the billing days from")
	closingDay := fs.Int("closing-day", 0, "Closing day (instead of --card)")
	dueDay := fs.Int("due-day", 0, "Due day (instead of --card)")
	month := fs.Int("month", int(today().Month), "Statement month")
	year := fs.Int("year", today().Year, "Statement year")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *month < 1 || *month > 12 {
		return fmt.Errorf("%w: --month must be 1-12", errUsage)
	}

	if *cardID != "" {
		var backend store.Backend
		var err error
		ctx, backend, err = openStore(ctx, &cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		card, err := backend.GetCard(ctx, *cardID)
		if err != nil {
			return err
		}
		if !card.HasBillingConfig() {
			return fmt.Errorf("card %s has no closing or due day configured", card.CardID)
		}
		*closingDay, *dueDay = card.ClosingDay, card.DueDay
	}

	card := domain.Card{ClosingDay: *closingDay, DueDay: *dueDay}
	if !card.HasBillingConfig() {
		return fmt.Errorf("%w: pass --card, or --closing-day and --due-day between 1 and 31", errUsage)
	}

	return writeJSON(out, billing.ComputePeriod(*closingDay, *month, *year, *dueDay))
}

func runPlan(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	start := fs.String("start", "", "First due date (YYYY-MM-DD or DD/MM/YYYY)")
	count := fs.Int("count", 0, "Number of installments")
	total := fs.String("total", "", "Purchase total, e.g. \"R$ 1.200,00\"")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *start == "" || *total == "" {
		return fmt.Errorf("%w: --start, --count and --total are required", errUsage)
	}

	startDate, err := calendar.ParseDate(*start)
	if err != nil {
		return err
	}
	amount, err := money.ParseAmount(*total)
	if err != nil {
		return err
	}

	plan, err := installments.PlanInstallments(startDate, *count, amount)
	if err != nil {
		return err
	}
	return writeJSON(out, plan)
}

func runGenerateBills(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.FromEnv()
	fs := flag.NewFlagSet("generate-bills", flag.ContinueOnError)
	cfg.RegisterStoreFlags(fs)
	cardID := fs.String("card", "", "Only this card")
	monthsBack := fs.Int("months-back", billing.DefaultMonthsBack, "Past cycles to recompute")
	monthsForward := fs.Int("months-forward", billing.DefaultMonthsForward, "Future cycles to create")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *monthsBack < 0 || *monthsForward < 0 {
		return fmt.Errorf("%w: window sizes must not be negative", errUsage)
	}

	ctx, backend, err := openStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	opts := billing.GenerateOptions{Today: today(), MonthsBack: *monthsBack, MonthsForward: *monthsForward}
	gen := billing.NewGenerator(backend, backend, backend)

	var report *billing.GenerateReport
	if *cardID != "" {
		report, err = gen.GenerateBillsForCard(ctx, *cardID, opts)
	} else {
		report, err = gen.GenerateBillsForAllCards(ctx, opts)
	}
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func runRepairInstallments(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.FromEnv()
	fs := flag.NewFlagSet("repair-installments", flag.ContinueOnError)
	cfg.RegisterStoreFlags(fs)
	execute := fs.Bool("execute", false, "Write the corrections (default only reports)")
	userID := fs.String("user", "", "Only this user's transactions")
	limit := fs.Int("limit", 0, "Maximum groups to analyze (0 for all)")
	fs.StringVar(&cfg.ReportBucket, "report-bucket", cfg.ReportBucket, "GCS bucket to archive the report in (or set REPORT_BUCKET env)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *limit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", errUsage)
	}

	ctx, backend, err := openStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	report, err := installments.NewNormalizer(backend).Run(ctx, installments.RunOptions{
		UserID:  *userID,
		Limit:   *limit,
		Execute: *execute,
	})
	if err != nil {
		return err
	}

	if cfg.ReportBucket != "" {
		objects, err := reports.NewGCSObjectStore(ctx)
		if err != nil {
			return err
		}
		defer objects.Close()

		uri, err := reports.NewArchive(objects, cfg.ReportBucket).SaveRepairReport(ctx, report)
		if err != nil {
			return err
		}
		log := logger.FromContext(ctx)
		log.Info().Str("report_uri", uri).Msg("Repair report archived")
	}

	return writeJSON(out, report)
}

func runPay(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.FromEnv()
	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	cfg.RegisterStoreFlags(fs)
	cardID := fs.String("card", "", "Card ID")
	month := fs.Int("month", 0, "Bill month")
	year := fs.Int("year", 0, "Bill year")
	amount := fs.String("amount", "", "Amount paid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *cardID == "" || *month < 1 || *month > 12 || *year < 1 || *amount == "" {
		return fmt.Errorf("%w: --card, --month, --year and --amount are required", errUsage)
	}

	paid, err := money.ParseAmount(*amount)
	if err != nil {
		return err
	}

	ctx, backend, err := openStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	bill, err := billing.RecordPayment(ctx, backend, domain.BillKey{CardID: *cardID, Month: *month, Year: *year}, paid)
	if err != nil {
		return err
	}
	return writeJSON(out, bill)
}

func runShowReport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show-report", flag.ContinueOnError)
	uri := fs.String("uri", "", "gs:// URI of the report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *uri == "" {
		return fmt.Errorf("%w: --uri is required", errUsage)
	}

	objects, err := reports.NewGCSObjectStore(ctx)
	if err != nil {
		return err
	}
	defer objects.Close()

	report, err := reports.NewArchive(objects, "").LoadRepairReport(ctx, *uri)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}
