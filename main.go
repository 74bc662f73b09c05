package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/config"
	"stealthcompany.com/holdmed/internal/couchbase"
	"stealthcompany.com/holdmed/internal/insight"
	"stealthcompany.com/holdmed/internal/orchestrator"
	"stealthcompany.com/holdmed/internal/store"
	"stealthcompany.com/holdmed/pkg/zerolog_config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "holdmed",
		Short:        "Post-operative monitoring risk insights",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(assessCmd())

	return rootCmd
}

func runCmd() *cobra.Command {
	var (
		binDir     string
		grace      time.Duration
		skipIngest bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingest and API services",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			zerolog_config.SetAppPrefix(cfg.AppName + "-orch")
			if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, cfg.LogIndex, cfg.LogLevel); err != nil {
				return err
			}

			log.Info().Msg("Starting holdmed-orch service")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			signals := orchestrator.NewSignalHandler()
			defer signals.Stop()
			signals.HandleSignals(ctx, cancel)

			var services []orchestrator.Service
			if !skipIngest && cfg.StoreBackend == config.StoreCouchbase {
				services = append(services, orchestrator.Service{
					Name:       "ingest",
					Path:       orchestrator.BinaryPath(binDir, "ingest"),
					OneShot:    true,
					StartDelay: 2 * time.Second,
				})
			}
			services = append(services, orchestrator.Service{
				Name: "api",
				Path: orchestrator.BinaryPath(binDir, "api"),
			})

			sm := orchestrator.NewServiceManager(grace, services...)
			if err := sm.Start(ctx); err != nil {
				return err
			}
			return sm.Wait(ctx)
		},
	}

	cmd.Flags().StringVar(&binDir, "bin-dir", ".", "directory holding the ingest and api binaries")
	cmd.Flags().DurationVar(&grace, "grace", orchestrator.DefaultGracePeriod, "time services get to stop before being killed")
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "start the API without refreshing records first")

	return cmd
}

func assessCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "assess [patient-id...]",
		Short: "Print the risk insight of patients in the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			records, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			rows, err := assess(cmd.Context(), records, insight.NewEngine(nil), args)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			return printAssessments(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreBackend != config.StoreCouchbase {
		return store.NewDemoStore(), func() {}, nil
	}

	client, err := couchbase.NewClient(couchbase.Config{
		URL:      cfg.CouchbaseURL,
		Username: cfg.CouchbaseUsername,
		Password: cfg.CouchbasePassword,
		Bucket:   cfg.CouchbaseBucket,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Couchbase: %w", err)
	}
	return client.Patients(), func() { client.Close() }, nil
}

// assessment is one row of the assess command output
type assessment struct {
	PatientID   string               `json:"patient_id"`
	PatientName string               `json:"patient_name"`
	Insight     *insight.RiskInsight `json:"insight,omitempty"`
	Unavailable string               `json:"unavailable,omitempty"`
}

// assess computes insights for ids, or for the whole roster when ids is empty.
func assess(ctx context.Context, records store.Store, engine *insight.Engine, ids []string) ([]assessment, error) {
	var patients []*clinical.Patient
	if len(ids) == 0 {
		roster, err := records.ListPatients(ctx)
		if err != nil {
			return nil, err
		}
		patients = roster
	}
	for _, id := range ids {
		p, err := records.GetPatient(ctx, id)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}

	rows := make([]assessment, 0, len(patients))
	for _, p := range patients {
		row := assessment{PatientID: p.ID, PatientName: p.Name}
		ri, err := engine.Compute(p)
		switch {
		case errors.Is(err, insight.ErrNoVitalData):
			row.Unavailable = err.Error()
		case err != nil:
			return nil, fmt.Errorf("patient %s: %w", p.ID, err)
		default:
			row.Insight = ri
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func printAssessments(out io.Writer, rows []assessment) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATIENT\tRISK\tCOMPLICATION\tINSIGHT")
	for _, row := range rows {
		if row.Insight == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t%s\n", row.PatientID, row.PatientName, row.Unavailable)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\n",
			row.PatientID,
			row.PatientName,
			row.Insight.Classification,
			row.Insight.ComplicationPercent,
			row.Insight.Narrative,
		)
	}
	return tw.Flush()
}
