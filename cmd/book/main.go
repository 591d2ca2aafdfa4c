// Command book runs one booking pass from the command line and prints the
// outcome as JSON.
//
//	book -company Acme -role designer -calls 2 -max-price 0 \
//	     -window 'Mon,Tue@09:00-17:00@America/New_York'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/expert-call-booker/cmd/mainconfig"
	"github.com/wolfman30/expert-call-booker/internal/app/bootstrap"
	"github.com/wolfman30/expert-call-booker/internal/booking"
	appconfig "github.com/wolfman30/expert-call-booker/internal/config"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

const (
	exitOK         = 0
	exitFatal      = 1
	exitValidation = 2
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type cliArgs struct {
	input  booking.RunInput
	dryRun bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	parsed, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitValidation
	}

	req, err := parsed.input.Parse()
	if err != nil {
		return report(stdout, stderr, nil, err)
	}

	cfg := appconfig.Load()
	if parsed.dryRun {
		cfg.DryRun = true
	}
	logger := logging.NewWithWriter(cfg.LogLevel, stderr)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "load aws config:", err)
		return exitFatal
	}
	rt, err := bootstrap.Build(ctx, cfg, awsCfg, nil, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	defer rt.Close()

	outcome, err := rt.Orchestrator.Run(ctx, req)
	return report(stdout, stderr, outcome, err)
}

func parseArgs(args []string, stderr io.Writer) (cliArgs, error) {
	var (
		out     cliArgs
		windows windowFlag
	)
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&out.input.TargetCompany, "company", "", "target company, e.g. Acme")
	fs.StringVar(&out.input.TargetRole, "role", "", "target role, e.g. designer")
	fs.IntVar(&out.input.NumCalls, "calls", 1, "number of calls to book")
	fs.Float64Var(&out.input.MaxPrice, "max-price", 0, "maximum price per call")
	fs.Var(&windows, "window", "availability window DAYS@HH:MM-HH:MM@TZ (repeatable)")
	fs.BoolVar(&out.dryRun, "dry-run", false, "fill booking forms without submitting them")
	if err := fs.Parse(args); err != nil {
		return cliArgs{}, err
	}
	if fs.NArg() > 0 {
		return cliArgs{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	out.input.Availability = windows
	return out, nil
}

// report prints whatever outcome exists and maps err to an exit code.
func report(stdout, stderr io.Writer, outcome *booking.Outcome, err error) int {
	if outcome != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(outcome); encErr != nil {
			fmt.Fprintln(stderr, "write outcome:", encErr)
			return exitFatal
		}
	}
	if err == nil {
		return exitOK
	}
	if verr, ok := booking.AsValidationError(err); ok {
		for _, issue := range verr.Issues {
			fmt.Fprintf(stderr, "%s: %s (%s)\n", issue.Field, issue.Message, issue.Code)
		}
		return exitValidation
	}
	fmt.Fprintln(stderr, err)
	return exitFatal
}

// windowFlag collects -window values of the form "Mon,Tue@09:00-17:00@UTC".
type windowFlag []schedule.WindowSpec

func (w *windowFlag) String() string {
	if w == nil {
		return ""
	}
	parts := make([]string, len(*w))
	for i, spec := range *w {
		parts[i] = fmt.Sprintf("%s@%s-%s@%s", strings.Join(spec.Days, ","), spec.Start, spec.End, spec.Timezone)
	}
	return strings.Join(parts, " ")
}

func (w *windowFlag) Set(value string) error {
	spec, err := parseWindowFlag(value)
	if err != nil {
		return err
	}
	*w = append(*w, spec)
	return nil
}

func parseWindowFlag(value string) (schedule.WindowSpec, error) {
	parts := strings.Split(strings.TrimSpace(value), "@")
	if len(parts) != 3 {
		return schedule.WindowSpec{}, fmt.Errorf("window %q: want DAYS@START-END@TIMEZONE", value)
	}
	start, end, ok := strings.Cut(parts[1], "-")
	if !ok {
		return schedule.WindowSpec{}, fmt.Errorf("window %q: want START-END, got %q", value, parts[1])
	}
	var days []string
	for _, d := range strings.Split(parts[0], ",") {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}
	// Day names, times and the timezone are checked by RunInput.Parse so
	// flag and API input report the same issues.
	return schedule.WindowSpec{
		Days:     days,
		Start:    strings.TrimSpace(start),
		End:      strings.TrimSpace(end),
		Timezone: strings.TrimSpace(parts[2]),
	}, nil
}
