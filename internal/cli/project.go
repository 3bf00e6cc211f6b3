package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/flowctl/internal/api"
	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/mq"
	"github.com/shaiso/flowctl/internal/orchestrator"
	"github.com/shaiso/flowctl/internal/scheduler"
)

// NewProjectCmd создаёт группу команд для управления проектами.
func NewProjectCmd(sessionFn func() *Session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectValidateCmd(sessionFn),
		newProjectStartCmd(sessionFn),
		newProjectStopCmd(sessionFn),
		newProjectDeleteCmd(sessionFn),
		newProjectSaveCmd(sessionFn),
		newProjectListCmd(sessionFn),
		newProjectShowCmd(sessionFn),
		newProjectRunsCmd(sessionFn),
	)

	return cmd
}

func newProjectValidateCmd(sessionFn func() *Session) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a project document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()

			project, err := s.LoadProject(args[0], 0)
			if err != nil {
				return err
			}
			if err := project.Validate(); err != nil {
				return err
			}

			printGraph(s.Output(), project)
			s.Output().Success(fmt.Sprintf("Project %s is valid: %d flows, %d queues",
				project.Name, project.Len(), project.MaxDagDegree()+1))
			return nil
		},
	}
}

func newProjectStartCmd(sessionFn func() *Session) *cobra.Command {
	var (
		parallelism  int
		pollInterval time.Duration
		stallTimeout time.Duration
		listen       string
		cronExpr     string
		record       bool
		publish      bool
	)

	cmd := &cobra.Command{
		Use:   "start FILE",
		Short: "Run a project until all flows finish",
		Long: `Run a project: save and start each flow on the platform as soon as
its dependencies occur, and wait until every flow finishes.

With --cron the project is started on every tick of the schedule until
the command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()
			ctx := cmd.Context()

			var err error
			var nextRun time.Time
			if cronExpr != "" {
				if nextRun, err = scheduler.NextRun(cronExpr, time.Now(), nil); err != nil {
					return err
				}
			}

			project, err := s.LoadProject(args[0], parallelism)
			if err != nil {
				return err
			}

			client, err := s.Client()
			if err != nil {
				return err
			}

			cfg := orchestrator.Config{
				Client:       client,
				Metrics:      s.metrics,
				PollInterval: pollInterval,
				StallTimeout: stallTimeout,
				Logger:       s.Logger(),
			}
			apiCfg := api.Config{Gatherer: s.registry, Logger: s.Logger()}

			if record {
				runs, err := s.Runs(ctx)
				if err != nil {
					return err
				}
				cfg.Recorder = runs
				apiCfg.Runs = runs

				projects, err := s.Projects(ctx)
				if err != nil {
					return err
				}
				apiCfg.Projects = projects
			}
			if publish {
				conn, err := s.MQ(ctx)
				if err != nil {
					return err
				}
				cfg.Publisher = mq.NewPublisher(conn, s.Logger())
			}

			orch := orchestrator.New(cfg)

			if listen != "" {
				apiCfg.Status = orch
				srvCtx, cancel := context.WithCancel(ctx)
				defer cancel()

				mux := api.NewHandler(apiCfg).NewMux()
				go func() {
					if err := api.Serve(srvCtx, listen, mux, s.Logger()); err != nil {
						s.Logger().Error("status server failed", "error", err)
					}
				}()
			}

			if cronExpr != "" {
				periodic, err := scheduler.NewPeriodic(scheduler.Config{
					Expr: cronExpr,
					Run: func(ctx context.Context) error {
						return orch.StartProject(ctx, project)
					},
					Logger: s.Logger(),
				})
				if err != nil {
					return err
				}

				s.Output().Success(fmt.Sprintf("Project %s scheduled (%s), next run at %s",
					project.Name, cronExpr, nextRun.Local().Format(time.RFC3339)))

				err = periodic.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			snapshot, err := orch.RunProject(ctx, project)
			if snapshot.RunID != uuid.Nil {
				printResult(s.Output(), project, snapshot)
			}
			if err != nil {
				return err
			}

			s.Output().Success(fmt.Sprintf("Project %s completed", project.Name))
			return nil
		},
	}

	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Max flows running at once (overrides the document)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Flow status poll interval")
	cmd.Flags().DurationVar(&stallTimeout, "stall-timeout", 0, "Fail when no flow can progress for this long (0 waits forever)")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve status API and metrics on this address")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Start the project on this cron schedule")
	cmd.Flags().BoolVar(&record, "record", false, "Record run history in PostgreSQL (DB_URL)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish flow events to RabbitMQ (RABBITMQ_URL)")

	return cmd
}

func newProjectStopCmd(sessionFn func() *Session) *cobra.Command {
	return &cobra.Command{
		Use:   "stop FILE",
		Short: "Stop every flow of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forEachFlow(cmd.Context(), sessionFn(), args[0], "stopped",
				(*orchestrator.Orchestrator).StopProject)
		},
	}
}

func newProjectDeleteCmd(sessionFn func() *Session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete FILE",
		Short: "Delete every flow of a project from the platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forEachFlow(cmd.Context(), sessionFn(), args[0], "deleted",
				(*orchestrator.Orchestrator).DeleteProject)
		},
	}
}

func forEachFlow(
	ctx context.Context,
	s *Session,
	path, done string,
	action func(*orchestrator.Orchestrator, context.Context, *engine.Project) error,
) error {
	project, err := s.LoadProject(path, 0)
	if err != nil {
		return err
	}

	client, err := s.Client()
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{Client: client, Logger: s.Logger()})
	if err := action(orch, ctx, project); err != nil {
		return err
	}

	s.Output().Success(fmt.Sprintf("Project %s: %d flows %s", project.Name, project.Len(), done))
	return nil
}

func newProjectSaveCmd(sessionFn func() *Session) *cobra.Command {
	return &cobra.Command{
		Use:   "save FILE",
		Short: "Validate a project document and store it in PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()

			project, err := s.LoadProject(args[0], 0)
			if err != nil {
				return err
			}
			if err := project.Validate(); err != nil {
				return err
			}

			projects, err := s.Projects(cmd.Context())
			if err != nil {
				return err
			}
			if err := projects.Save(cmd.Context(), project.ToSpec()); err != nil {
				return err
			}

			s.Output().Success(fmt.Sprintf("Project saved: %s", project.Name))
			return nil
		},
	}
}

func newProjectListCmd(sessionFn func() *Session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := sessionFn()

			projects, err := s.Projects(cmd.Context())
			if err != nil {
				return err
			}
			records, err := projects.List(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "FLOWS", "PARALLELISM", "UPDATED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.Spec.Name,
					strconv.Itoa(len(r.Spec.Flows)),
					strconv.Itoa(r.Spec.Parallelism),
					r.UpdatedAt.Format(time.RFC3339),
				}
			}

			s.Output().Print(headers, rows, records)
			return nil
		},
	}
}

func newProjectShowCmd(sessionFn func() *Session) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()

			projects, err := s.Projects(cmd.Context())
			if err != nil {
				return err
			}
			record, err := projects.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("project %s: %w", args[0], err)
			}

			if s.Output().JSONMode() {
				s.Output().JSON(record.Spec)
				return nil
			}

			project, err := engine.BuildProject(&record.Spec, s.Logger())
			if err != nil {
				return err
			}
			printGraph(s.Output(), project)
			return nil
		},
	}
}

func newProjectRunsCmd(sessionFn func() *Session) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs NAME",
		Short: "Show run history of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()

			runs, err := s.Runs(cmd.Context())
			if err != nil {
				return err
			}
			history, err := runs.ListRuns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"RUN_ID", "STATUS", "STARTED", "DURATION", "ERROR"}
			rows := make([][]string, len(history))
			for i, r := range history {
				duration := "-"
				if r.FinishedAt != nil {
					duration = r.Duration().Truncate(time.Second).String()
				}
				rows[i] = []string{
					r.ID.String(),
					string(r.Status),
					r.StartedAt.Format(time.RFC3339),
					duration,
					dash(r.Error),
				}
			}

			s.Output().Print(headers, rows, history)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Max number of runs")

	return cmd
}

// --- Printing ---

// printGraph выводит flows проекта с зависимостями.
func printGraph(out *Output, project *engine.Project) {
	headers := []string{"FLOW", "DEPENDS_ON", "DAG_DEGREE"}
	rows := make([][]string, 0, project.Len())
	for _, flow := range project.Flows() {
		rows = append(rows, []string{
			flow.Name,
			dash(strings.Join(project.DependsOn(flow.Name), ", ")),
			strconv.Itoa(project.DagDegree(flow.Name)),
		})
	}
	out.Print(headers, rows, project.ToSpec())
}

// printResult выводит итог run по каждому flow.
func printResult(out *Output, project *engine.Project, snapshot orchestrator.Snapshot) {
	headers := []string{"FLOW", "RESULT", "MISSING"}
	rows := make([][]string, 0, project.Len())
	for _, flow := range project.Flows() {
		result, missing := flowResult(snapshot, flow.Name)
		rows = append(rows, []string{flow.Name, result, dash(strings.Join(missing, ", "))})
	}
	out.Print(headers, rows, snapshot)
}

func flowResult(snapshot orchestrator.Snapshot, name string) (string, []string) {
	switch {
	case slices.Contains(snapshot.Completed, name):
		return "completed", nil
	case slices.Contains(snapshot.Failed, name):
		return "failed", nil
	case slices.Contains(snapshot.Submitted, name):
		return "running", nil
	}
	if missing, ok := snapshot.Waiting[name]; ok {
		return "not started", missing
	}
	return "not started", nil
}
