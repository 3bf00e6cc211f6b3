package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/platform"
)

// NewFlowCmd создаёт группу команд для отдельных flows на платформе.
//
// Flow адресуется по имени; --id пропускает поиск по имени.
func NewFlowCmd(sessionFn func() *Session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect and control single flows",
	}

	cmd.AddCommand(
		newFlowStatusCmd(sessionFn),
		newFlowActionCmd(sessionFn, "start", "Start a saved flow", "started", (*platform.FlowHandle).Start),
		newFlowActionCmd(sessionFn, "stop", "Stop a flow", "stopped", (*platform.FlowHandle).Stop),
		newFlowActionCmd(sessionFn, "delete", "Delete a flow from the platform", "deleted", (*platform.FlowHandle).Delete),
	)

	return cmd
}

// flowStatusView — строка вывода flow status.
type flowStatusView struct {
	Flow     string                 `json:"flow"`
	ID       string                 `json:"id,omitempty"`
	Status   domain.FlowStatus      `json:"status"`
	Snapshot domain.MilestoneStatus `json:"snapshot,omitempty"`
	CDC      domain.MilestoneStatus `json:"cdc,omitempty"`
	Events   []domain.Event         `json:"events"`
}

func newFlowStatusCmd(sessionFn func() *Session) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show flow status and the events it implies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()

			handle, err := flowHandle(s, args[0], id)
			if err != nil {
				return err
			}

			state, err := handle.Status(cmd.Context())
			if err != nil {
				return err
			}

			view := flowStatusView{
				Flow:     args[0],
				ID:       handle.Flow().ID,
				Status:   state.Status,
				Snapshot: state.SnapshotStatus(),
				CDC:      state.CDCStatus(),
				Events:   engine.DeriveEvents(args[0], state),
			}

			events := make([]string, len(view.Events))
			for i, e := range view.Events {
				events[i] = e.String()
			}

			headers := []string{"FLOW", "STATUS", "SNAPSHOT", "CDC", "EVENTS"}
			rows := [][]string{{
				view.Flow,
				string(view.Status),
				dash(string(view.Snapshot)),
				dash(string(view.CDC)),
				dash(strings.Join(events, ", ")),
			}}

			s.Output().Print(headers, rows, view)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Platform task ID")

	return cmd
}

func newFlowActionCmd(
	sessionFn func() *Session,
	use, short, done string,
	action func(*platform.FlowHandle, context.Context) error,
) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   use + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionFn()

			handle, err := flowHandle(s, args[0], id)
			if err != nil {
				return err
			}
			if err := action(handle, cmd.Context()); err != nil {
				return err
			}

			s.Output().Success(fmt.Sprintf("Flow %s %s", args[0], done))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Platform task ID")

	return cmd
}

func flowHandle(s *Session, name, id string) (*platform.FlowHandle, error) {
	client, err := s.Client()
	if err != nil {
		return nil, err
	}
	return client.Flow(&domain.Flow{Name: name, ID: id}), nil
}
