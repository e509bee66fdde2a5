package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/k8s"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/scheduler"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "trainer",
		Short:        "Train and tune the online shopper purchase-intention model",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newSplitCmd(),
		newTrainCmd(),
		newOptimizeCmd(),
		newFinalCmd(),
		newEvaluateCmd(),
		newPublishCmd(),
		newRunCmd(),
		newRunsCmd(),
		newScheduleCmd(),
		newSubmitCmd(),
		newStatusCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the app for one command and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Write the stratified train.csv and test.csv",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			return a.splitter.Split(ctx)
		}),
	}
}

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit the preprocessing pipeline and evaluate every model in the roster",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			reports, err := a.service.TrainAll(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tTRAIN F1\tTEST F1\tTEST RECALL\tTEST PRECISION\tCV F1")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f ± %.4f\n",
					r.Kind, r.Train.F1, r.Test.F1, r.Test.Recall, r.Test.Precision, r.CVF1Mean, r.CVF1Std)
			}
			w.Flush()

			rec, err := a.service.Recommend(reports)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println(rec.Reasoning)
			return nil
		}),
	}
}

func newOptimizeCmd() *cobra.Command {
	var nTrials int

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search the final booster's hyperparameters and write model.yaml",
		Long: `Search the final booster's hyperparameters and write model.yaml.

The fitted pipeline must already exist; run "trainer train" first.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			n := a.cfg.NTrials
			if nTrials > 0 {
				n = nTrials
			}
			res, err := a.optimizer(n).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("best trial %d: f1=%.4f (%d trials)\n", res.Best.Number, res.Best.Value, len(res.Trials))
			return nil
		}),
	}

	cmd.Flags().IntVar(&nTrials, "n-trials", 0, "Trial budget (default N_TRIALS)")
	return cmd
}

func newFinalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "final",
		Short: "Train final_model from model.yaml",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			return a.trainFinal(ctx)
		}),
	}
}

func newEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Score final_model on the reserved test.csv",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			metrics, err := a.service.EvaluateHoldout(ctx)
			if err != nil {
				return err
			}
			return printJSON(metrics)
		}),
	}
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload pipeline and final_model to the artifact bucket",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			return a.publish(ctx)
		}),
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run train, optimize, final and publish in order",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			return a.runAll(ctx)
		}),
	}
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List tracked runs of the experiment",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			runs, err := a.tracker.ListRuns(ctx)
			if err != nil {
				return err
			}
			return printJSON(runs)
		}),
	}
}

func newScheduleCmd() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rerun the full pipeline on a cron schedule",
		Long: `Rerun the full pipeline on a cron schedule until interrupted.

A tick that fires while the previous run is still active is skipped.

Example: trainer schedule --cron "0 3 * * 1"`,
		Args: cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			s, err := scheduler.NewService(spec, a.runAll, a.logger)
			if err != nil {
				return err
			}
			s.Start()
			<-ctx.Done()
			a.logger.Info("shutting down scheduler", zap.Any("status", s.Status()))
			s.Stop()
			return nil
		}),
	}

	cmd.Flags().StringVar(&spec, "cron", "0 3 * * *", "Cron expression (five fields or @descriptor)")
	return cmd
}

func newSubmitCmd() *cobra.Command {
	var dataClaim, modelsClaim string

	cmd := &cobra.Command{
		Use:       "submit [stage]",
		Short:     "Run a pipeline stage as a Kubernetes Job",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: k8s.Stages,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := k8s.NewClient(a.cfg.KubeNamespace)
			if err != nil {
				return err
			}
			name, err := client.SubmitStage(cmd.Context(), k8s.JobSpec{
				Stage:       args[0],
				Image:       a.cfg.TrainerImage,
				DataClaim:   dataClaim,
				ModelsClaim: modelsClaim,
				Env: map[string]string{
					"ENVIRONMENT":    a.cfg.Environment,
					"LOG_LEVEL":      a.cfg.LogLevel,
					"ARTIFACT_STORE": a.cfg.ArtifactStore,
					"SEED":           fmt.Sprint(a.cfg.Seed),
				},
			})
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataClaim, "data-claim", "", "PersistentVolumeClaim mounted at /app/data")
	cmd.Flags().StringVar(&modelsClaim, "models-claim", "", "PersistentVolumeClaim mounted at /app/models")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [job]",
		Short: "Show the status of one or all submitted stage Jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := k8s.NewClient(a.cfg.KubeNamespace)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				status, err := client.GetJobStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(status)
				return nil
			}

			jobs, err := client.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTAGE\tSTATUS\tCREATED")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.Name, j.Stage, j.Status, j.Created.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
