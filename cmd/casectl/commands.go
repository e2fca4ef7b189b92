package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"caseverify/internal/audit"
	"caseverify/internal/cases/service"
	"caseverify/internal/cases/store"
	"caseverify/internal/platform/config"
	"caseverify/internal/platform/logger"
	"caseverify/internal/reporting"
	"caseverify/internal/seed"
)

const seedBatchSize = 500

type app struct {
	cfg config.Server
	log *slog.Logger

	storeDriver string
	sqlitePath  string
	postgresDSN string
	auditLog    string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "casectl",
		Short:         "Administer the refugee case database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.storeDriver, "store", "", "store driver: sqlite, postgres or memory (default from CASEVERIFY_STORE)")
	flags.StringVar(&a.sqlitePath, "sqlite-path", "", "SQLite database file (default from CASEVERIFY_SQLITE_PATH)")
	flags.StringVar(&a.postgresDSN, "postgres-dsn", "", "Postgres DSN (default from CASEVERIFY_POSTGRES_DSN)")
	flags.StringVar(&a.auditLog, "audit-log", "", "issuance audit CSV (default from CASEVERIFY_AUDIT_LOG)")

	root.AddCommand(
		a.seedCmd(),
		a.setCountryCmd(),
		a.listCmd(),
		a.issuedCmd(),
		a.exportCmd(),
	)
	return root
}

// load reads the environment, then applies any flags the user set.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Driver = a.storeDriver
	}
	if flags.Changed("sqlite-path") {
		cfg.Store.SQLitePath = a.sqlitePath
	}
	if flags.Changed("postgres-dsn") {
		cfg.Store.PostgresDSN = a.postgresDSN
	}
	if flags.Changed("audit-log") {
		cfg.Audit.LogPath = a.auditLog
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cmd.ErrOrStderr(), "text", cfg.LogLevel)
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, a.cfg.Store, a.log)
	if err != nil {
		return nil, fmt.Errorf("open case store: %w", err)
	}
	return s, nil
}

func (a *app) issuedRecords(ctx context.Context, s store.Store) ([]service.IssuedRecord, error) {
	svc, err := service.New(s,
		service.WithLogger(a.log),
		service.WithIssueDates(audit.NewCSVStore(a.cfg.Audit.LogPath)),
	)
	if err != nil {
		return nil, err
	}
	return svc.ListIssued(ctx)
}

func (a *app) seedCmd() *cobra.Command {
	var (
		count   int
		start   int
		rngSeed uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert synthetic cases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if start <= 0 {
				return fmt.Errorf("--start must be positive")
			}
			if rngSeed == 0 {
				rngSeed = uint64(time.Now().UnixNano())
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			gen := seed.New(rngSeed, time.Now())
			for offset := 0; offset < count; offset += seedBatchSize {
				n := min(seedBatchSize, count-offset)
				if err := s.Create(ctx, gen.Generate(start+offset, n)...); err != nil {
					return fmt.Errorf("insert batch starting at %d: %w", start+offset, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d cases\n", count)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10000, "number of cases to insert")
	cmd.Flags().IntVar(&start, "start", 1, "first sequence number (UGA-%08d)")
	cmd.Flags().Uint64Var(&rngSeed, "seed", 0, "random seed; 0 picks one from the clock")
	return cmd
}

func (a *app) setCountryCmd() *cobra.Command {
	var to, from string
	cmd := &cobra.Command{
		Use:   "set-country",
		Short: "Rewrite country of origin, for all cases or those matching --from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			to = strings.TrimSpace(to)
			if to == "" {
				return fmt.Errorf("--to is required")
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.SetCountryOfOrigin(ctx, to, strings.TrimSpace(from))
			if err != nil {
				return fmt.Errorf("update country of origin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d cases\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "new country of origin")
	cmd.Flags().StringVar(&from, "from", "", "only update cases currently from this country")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print cases ordered by individual number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			cases, err := s.List(ctx, limit)
			if err != nil {
				return fmt.Errorf("list cases: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDIVIDUAL\tNAME\tAGE\tLEGAL\tPROCESS\tCOUNTRY\tNSSF")
			for _, c := range cases {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					c.IndividualNumber, c.FullName, c.Age, c.LegalStatus, c.ProcessStatus, c.CountryOfOrigin, c.IssuedNumber)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum cases to print")
	return cmd
}

func (a *app) issuedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issued",
		Short: "Print cases holding an NSSF number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := a.issuedRecords(ctx, s)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NSSF\tINDIVIDUAL\tNAME\tSTATUS\tISSUED")
			for _, r := range records {
				issued := "-"
				if r.IssueDate != nil {
					issued = r.IssueDate.Format(audit.TimestampLayout)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.Case.IssuedNumber, r.Case.IndividualNumber, r.Case.FullName, r.Case.ProcessStatus, issued)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d issued\n", len(records))
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write issued records to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := a.issuedRecords(ctx, s)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := reporting.WriteIssuedXLSX(f, records); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "nssf_records.xlsx", "output file")
	return cmd
}
