package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"licensescan/internal"
	"licensescan/internal/capture"
	"licensescan/internal/config"
	"licensescan/internal/connectors"
	gmailconnector "licensescan/internal/connectors/gmail"
	imapconnector "licensescan/internal/connectors/imap"
	"licensescan/internal/license"
	"licensescan/internal/listener"
	"licensescan/internal/logging"
	"licensescan/internal/pipeline"
	"licensescan/internal/roster"
	"licensescan/internal/server"
	"licensescan/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "decode" {
		decode(os.Args[2:])
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "scan:listen":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		quiet := fs.Duration("quiet", cfg.ScanQuiet, "pause that ends a scan burst")
		minLen := fs.Int("min", cfg.ScanMinLength, "minimum scan length in characters")
		_ = fs.Parse(os.Args[2:])

		buf := capture.FromConfig(cfg)
		buf.Quiet = *quiet
		buf.MinLength = *minLen
		processor := pipeline.NewProcessingService(db, cfg)
		fmt.Println("waiting for scans, Ctrl-C to stop")
		must(buf.Run(ctx, os.Stdin, func(text string) {
			scan, err := processor.ProcessText(ctx, internal.SourceScanner, "", text)
			if err != nil {
				fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
				return
			}
			fmt.Printf("scan id=%s status=%s name=%q license=%s match=%s\n",
				scan.ID, scan.Status, scan.Student.Name, scan.Student.LicenseNumber, scan.Match.Status)
		}))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d scans=%d counts=%v\n", res.EmailID, res.Processed, res.Counts)
			return
		}
		processedEmails, processedScans, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d scans=%d\n", processedEmails, processedScans)
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(ctx))
	case "roster:sync":
		svc := roster.NewSyncService(db, cfg)
		if last, ok := svc.LastSync(); ok {
			fmt.Printf("previous sync: %s\n", last.Local().Format(time.RFC1123))
		}
		count, err := svc.PullRoster(ctx)
		must(err)
		fmt.Printf("roster sync complete: %d students\n", count)
	case "roster:submit":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max scans to submit")
		_ = fs.Parse(os.Args[2:])
		svc := roster.NewSyncService(db, cfg)
		res, err := svc.SubmitPending(ctx, *limit)
		must(err)
		fmt.Printf("roster submit done submitted=%d duplicates=%d failed=%d\n", res.Submitted, res.Duplicates, res.Failed)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		emailID := fs.Int("emailId", 0, "internal email id (0 = all scans)")
		status := fs.String("status", "", "ready|review|known|rejected|submitted|duplicate")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		var rows []internal.ScanRow
		if *emailID != 0 {
			rows, err = db.ListScansByEmail(*emailID)
		} else {
			rows, err = db.GetExportRows(internal.ScanStatus(*status))
		}
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no scans to export"))
		}
		must(pipeline.ExportScansToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path or raw text")
		inType := fs.String("type", "", "text|file|pdf|xlsx|email")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *inType == "" || *output == "" {
			must(fmt.Errorf("--input --type --output are required"))
		}

		payloads, err := pipeline.ExtractPayloadsFromInput(*inType, *input)
		must(err)
		students, err := db.ListRosterStudents()
		must(err)
		matcher := pipeline.NewMatcher(cfg, students)

		// One-off rows are exported without being stored.
		rows := make([]internal.ScanRow, 0, len(payloads))
		for i, decoded := range pipeline.DecodePayloads(payloads) {
			row := internal.ScanRow{
				ID:         fmt.Sprintf("run-%d", i+1),
				Source:     decoded.Source,
				Ref:        decoded.Ref,
				RawText:    decoded.Text,
				Fields:     decoded.Fields,
				Student:    decoded.Result.Student,
				LicenseRaw: decoded.Result.LicenseRaw,
				Status:     internal.ScanRejected,
				CreatedAt:  time.Now().UTC().Format(time.RFC3339),
			}
			if decoded.Detect.IsLicense {
				row.Match = matcher.Match(row.Student)
				row.Status = pipeline.StatusForMatch(row.Match.Status)
			}
			rows = append(rows, row)
		}
		must(pipeline.ExportScansToXLSX(rows, *output))
		fmt.Printf("run done rows=%d output=%s\n", len(rows), *output)
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		_ = fs.Parse(os.Args[2:])
		must(server.New(db, cfg).ListenAndServe(ctx, *addr))
	default:
		usage()
		os.Exit(1)
	}
}

func decode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	input := fs.String("input", "", "raw payload text, or @path to read a file, or - for stdin")
	fieldsOnly := fs.Bool("fields", false, "print the segmented field map instead")
	_ = fs.Parse(args)

	raw, err := readInput(*input)
	must(err)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if *fieldsOnly {
		must(enc.Encode(license.Segment(raw)))
		return
	}
	must(enc.Encode(license.Decode(raw)))
}

func readInput(input string) (string, error) {
	switch {
	case input == "-":
		blob, err := io.ReadAll(os.Stdin)
		return string(blob), err
	case strings.HasPrefix(input, "@"):
		blob, err := os.ReadFile(filepath.Clean(strings.TrimPrefix(input, "@")))
		return string(blob), err
	case input == "":
		return "", fmt.Errorf("--input is required")
	default:
		return input, nil
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: licensescan <command>")
	fmt.Println("commands:")
	fmt.Println("  decode --input=<text|@file|-> [--fields]")
	fmt.Println("  scan:listen [--quiet=120ms] [--min=40]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  roster:sync")
	fmt.Println("  roster:submit [--limit=50]")
	fmt.Println("  export:xlsx --out=./out/scans.xlsx [--emailId=1] [--status=review]")
	fmt.Println("  run --input=... --type=text|file|pdf|xlsx|email --output=...xlsx")
	fmt.Println("  serve [--addr=:8088]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
