package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerResult identifies an enqueued task.
type TriggerResult struct {
	Job   string `json:"job"`
	ID    string `json:"id"`
	Queue string `json:"queue"`
}

// Trigger enqueues a supported job by name. A nil company targets every company.
func (c *JobsCLI) Trigger(ctx context.Context, name string, companyID *uuid.UUID, strict bool) (TriggerResult, error) {
	if c == nil || c.client == nil {
		return TriggerResult{}, errors.New("jobs cli: client not configured")
	}
	var info *asynq.TaskInfo
	var err error
	switch name {
	case jobs.TaskLedgerIntegrity:
		info, err = c.client.EnqueueLedgerIntegrity(ctx, jobs.LedgerIntegrityPayload{CompanyID: companyID, Strict: strict})
	case jobs.TaskAnalyticsWarmup:
		info, err = c.client.EnqueueAnalyticsWarmup(ctx, jobs.AnalyticsWarmupPayload{CompanyID: companyID})
	default:
		return TriggerResult{}, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return TriggerResult{}, err
	}
	return TriggerResult{Job: name, ID: info.ID, Queue: info.Queue}, nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueues reports the metrics of the ledger and default queues.
// Queues that have never received a task report zeros.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	queues := []string{jobs.QueueLedger, jobs.QueueDefault}
	out := make([]QueueStats, 0, len(queues))
	for _, name := range queues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := c.inspector.GetQueueInfo(name)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			out = append(out, QueueStats{Queue: name})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, QueueStats{
			Queue:     name,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
		})
	}
	return out, nil
}

// ListArchived returns postings the worker gave up on, for manual review.
func (c *JobsCLI) ListArchived(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListArchivedTasks(jobs.QueueLedger, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}

type archivedTask struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Payload  string `json:"payload"`
	LastErr  string `json:"last_error"`
	Retried  int    `json:"retried"`
	MaxRetry int    `json:"max_retry"`
}

func newJobsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand(s), newJobsInspectCommand(s))
	return cmd
}

func (s *session) jobsCLI() (*JobsCLI, error) {
	if s.opts.Config == nil || s.opts.Config.RedisAddr == "" {
		return nil, errors.New("jobs: REDIS_ADDR is not configured")
	}
	return NewJobsCLI(s.opts.Config.RedisAddr)
}

func newJobsTriggerCommand(s *session) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:       "trigger <" + jobs.TaskLedgerIntegrity + "|" + jobs.TaskAnalyticsWarmup + ">",
		Short:     "Enqueue a job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskLedgerIntegrity, jobs.TaskAnalyticsWarmup},
		RunE: func(cmd *cobra.Command, args []string) error {
			var companyID *uuid.UUID
			if s.company != "" {
				id, err := s.companyID()
				if err != nil {
					return err
				}
				companyID = &id
			}
			cli, err := s.jobsCLI()
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()
			result, err := cli.Trigger(cmd.Context(), args[0], companyID, strict)
			if err != nil {
				return err
			}
			return s.render(cmd, result, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Enqueued %s as %s on %s.\n", result.Job, result.ID, result.Queue)
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "integrity: read from a serializable snapshot")
	return cmd
}

func newJobsInspectCommand(s *session) *cobra.Command {
	var archived int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show queue depth and postings awaiting manual review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := s.jobsCLI()
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()
			stats, err := cli.InspectQueues(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := cli.ListArchived(archived)
			if err != nil {
				return err
			}
			review := make([]archivedTask, 0, len(tasks))
			for _, t := range tasks {
				review = append(review, archivedTask{ID: t.ID, Type: t.Type, Payload: string(t.Payload), LastErr: t.LastErr, Retried: t.Retried, MaxRetry: t.MaxRetry})
			}
			out := struct {
				Queues []QueueStats   `json:"queues"`
				Review []archivedTask `json:"review"`
			}{stats, review}
			return s.render(cmd, out, func(w io.Writer) {
				for _, q := range stats {
					_, _ = fmt.Fprintf(w, "%-8s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
						q.Queue, q.Pending, q.Active, q.Scheduled, q.Retry, q.Archived)
				}
				if len(review) == 0 {
					return
				}
				_, _ = fmt.Fprintln(w, "Awaiting manual review:")
				for _, t := range review {
					_, _ = fmt.Fprintf(w, " - %s %s: %s\n", t.ID, t.Payload, t.LastErr)
				}
			})
		},
	}
	cmd.Flags().IntVar(&archived, "review", 10, "number of archived postings to list")
	return cmd
}
