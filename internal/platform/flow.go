package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/flowctl/internal/domain"
)

// Операции над flow. Если у flow ещё нет ID, задача ищется на платформе
// по имени, и найденный ID записывается во flow.

// Save создаёт задачу или сохраняет определение существующей.
func (c *Client) Save(ctx context.Context, flow *domain.Flow) error {
	if flow.Name == "" {
		return ErrEmptyFlowName
	}

	if flow.ID == "" {
		task, err := c.FindTask(ctx, flow.Name)
		switch {
		case errors.Is(err, ErrTaskNotFound):
			created, err := c.CreateTask(ctx, flow.Name, flow.Definition)
			if err != nil {
				return fmt.Errorf("create task %s: %w", flow.Name, err)
			}
			flow.ID = created.ID
			return nil
		case err != nil:
			return fmt.Errorf("find task %s: %w", flow.Name, err)
		}
		flow.ID = task.ID
	}

	if err := c.UpdateTask(ctx, flow.ID, flow.Name, flow.Definition); err != nil {
		return fmt.Errorf("save task %s: %w", flow.Name, err)
	}
	return nil
}

// Start запускает flow.
func (c *Client) Start(ctx context.Context, flow *domain.Flow) error {
	id, err := c.resolveID(ctx, flow)
	if err != nil {
		return err
	}
	if err := c.StartTask(ctx, id); err != nil {
		return fmt.Errorf("start task %s: %w", flow.Name, err)
	}
	return nil
}

// Stop останавливает flow.
func (c *Client) Stop(ctx context.Context, flow *domain.Flow) error {
	id, err := c.resolveID(ctx, flow)
	if err != nil {
		return err
	}
	if err := c.StopTask(ctx, id); err != nil {
		return fmt.Errorf("stop task %s: %w", flow.Name, err)
	}
	return nil
}

// Delete удаляет flow с платформы.
func (c *Client) Delete(ctx context.Context, flow *domain.Flow) error {
	id, err := c.resolveID(ctx, flow)
	if err != nil {
		return err
	}
	if err := c.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", flow.Name, err)
	}
	flow.ID = ""
	return nil
}

// Status возвращает текущее состояние flow.
// Ответ без статуса считается ErrMalformedResponse.
func (c *Client) Status(ctx context.Context, flow *domain.Flow) (*domain.FlowState, error) {
	id, err := c.resolveID(ctx, flow)
	if err != nil {
		return nil, err
	}

	task, err := c.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == "" {
		return nil, fmt.Errorf("%w: task %s has no status", ErrMalformedResponse, id)
	}

	return task.State(), nil
}

func (c *Client) resolveID(ctx context.Context, flow *domain.Flow) (string, error) {
	if flow.ID != "" {
		return flow.ID, nil
	}
	if flow.Name == "" {
		return "", ErrEmptyFlowName
	}

	task, err := c.FindTask(ctx, flow.Name)
	if err != nil {
		return "", err
	}
	flow.ID = task.ID
	return task.ID, nil
}

// FlowHandle — клиент, привязанный к одному flow.
type FlowHandle struct {
	client *Client
	flow   *domain.Flow
}

// Flow возвращает handle для flow.
func (c *Client) Flow(flow *domain.Flow) *FlowHandle {
	return &FlowHandle{client: c, flow: flow}
}

// Flow возвращает flow, к которому привязан handle.
func (h *FlowHandle) Flow() *domain.Flow { return h.flow }

// Save сохраняет flow.
func (h *FlowHandle) Save(ctx context.Context) error { return h.client.Save(ctx, h.flow) }

// Start запускает flow.
func (h *FlowHandle) Start(ctx context.Context) error { return h.client.Start(ctx, h.flow) }

// Stop останавливает flow.
func (h *FlowHandle) Stop(ctx context.Context) error { return h.client.Stop(ctx, h.flow) }

// Delete удаляет flow.
func (h *FlowHandle) Delete(ctx context.Context) error { return h.client.Delete(ctx, h.flow) }

// Status возвращает состояние flow.
func (h *FlowHandle) Status(ctx context.Context) (*domain.FlowState, error) {
	return h.client.Status(ctx, h.flow)
}
