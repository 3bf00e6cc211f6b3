package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowctl/internal/mq"
)

// NewEventsCmd создаёт группу команд для событий flows.
func NewEventsCmd(sessionFn func() *Session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow flow events published by project runs",
	}

	cmd.AddCommand(newEventsWatchCmd(sessionFn))

	return cmd
}

func newEventsWatchCmd(sessionFn func() *Session) *cobra.Command {
	var flow string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print flow events from RabbitMQ until interrupted",
		Long: `Print flow events published by "project start --publish".

Without --flow events are read from the shared durable queue. With --flow
a temporary queue bound to that flow's events is used instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := sessionFn()
			ctx := cmd.Context()

			conn, err := s.MQ(ctx)
			if err != nil {
				return err
			}

			queue := mq.QueueEventsWatch
			if flow != "" {
				if queue, err = mq.SetupFlowQueue(ctx, conn, flow); err != nil {
					return err
				}
			}
			s.Logger().Debug("rabbitmq topology" + mq.TopologyInfo())

			consumer := mq.NewConsumer(conn, s.Logger(), mq.ConsumerConfig{
				Queue: queue,
				Handler: mq.FlowEventHandler(func(_ context.Context, event mq.FlowEventPayload) error {
					printEvent(s.Output(), event)
					return nil
				}),
			})

			err = consumer.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&flow, "flow", "", "Only events of this flow")

	return cmd
}

// printEvent выводит событие одной строкой.
func printEvent(out *Output, event mq.FlowEventPayload) {
	if out.JSONMode() {
		out.Line(event)
		return
	}
	out.Text(fmt.Sprintf("%s  %-16s %s",
		event.OccurredAt.Local().Format(time.RFC3339), event.Project, event.Event))
}
