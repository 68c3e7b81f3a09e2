package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/repository"
)

type ResultConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
	registry   *registry.Store
}

func NewResultConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository, store *registry.Store) *ResultConsumer {
	return &ResultConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
		registry:   store,
	}
}

func (c *ResultConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.ResultQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register result consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Result Consumer] Started listening for results on queue: %s", produce.ResultQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.infra.Logger.InfoWithContextf(ctx, "[Result Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.infra.Logger.WarningWithContextf(ctx, "[Result Consumer] Channel closed")
					return
				}
				c.handleResult(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *ResultConsumer) handleResult(ctx context.Context, msg amqp.Delivery) {
	var payload produce.ResultMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	opID, err := uuid.Parse(payload.OperationID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Invalid operation ID '%s': %v", payload.OperationID, err)
		_ = msg.Nack(false, false)
		return
	}

	op, err := c.repository.OperationRepo.FindByID(opID)
	if err != nil {
		if repository.IsNotFound(err) {
			c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Unknown operation %s", opID)
			_ = msg.Nack(false, false)
			return
		}
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Failed to load operation %s, requeueing: %v", opID, err)
		_ = msg.Nack(false, true)
		return
	}

	if op.Settled() {
		c.infra.Logger.WarningWithContextf(ctx, "[Result Consumer] Operation %s already %s, dropping duplicate", opID, op.Status)
		_ = msg.Ack(false)
		return
	}

	action := produce.Action(op.Action)
	at := time.Now().UTC().Format(time.RFC3339)

	if err := settleOperation(op, payload, at); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Failed to encode result for %s: %v", opID, err)
		_ = msg.Nack(false, false)
		return
	}

	vm, remove, err := c.persist(op, payload, at)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Failed to persist result for %s, requeueing: %v", opID, err)
		_ = msg.Nack(false, true)
		return
	}

	switch {
	case vm == nil:
	case remove:
		c.forget(ctx, vm.Name)
	default:
		c.cacheStatus(ctx, vm, payload)
	}

	c.notify(ctx, op, action)

	c.infra.Logger.InfoWithContextf(ctx, "[Result Consumer] Operation %s (%s on '%s') settled as %s", opID, action, op.VMName, op.Status)
	_ = msg.Ack(false)
}

// persist saves the operation and the VM it targets in one transaction.
func (c *ResultConsumer) persist(op *entity.Operation, payload produce.ResultMessage, at string) (*entity.VM, bool, error) {
	tx := c.repository.BeginTransaction(c.infra.Postgres.DB)
	txRepo := c.repository.WithTransaction(tx)

	if err := txRepo.OperationRepo.Update(op); err != nil {
		tx.Rollback()
		return nil, false, err
	}

	vm, err := txRepo.VMRepo.FindByName(op.VMName)
	if err != nil && !repository.IsNotFound(err) {
		tx.Rollback()
		return nil, false, err
	}

	remove := false
	if vm != nil {
		remove = settleVM(vm, op, payload, at)
		if remove {
			err = txRepo.VMRepo.DeleteByName(vm.Name)
		} else {
			err = txRepo.VMRepo.Update(vm)
		}
		if err != nil {
			tx.Rollback()
			return nil, false, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, err
	}
	return vm, remove, nil
}

func (c *ResultConsumer) cacheStatus(ctx context.Context, vm *entity.VM, payload produce.ResultMessage) {
	ttl := c.registry.Snapshot().Settings().Timeouts.VMOperation
	if err := c.infra.Redis.Set(ctx, infra.VMStatusKey(vm.Name), statusFromResult(vm, payload), ttl); err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Result Consumer] Failed to cache status for '%s': %v", vm.Name, err)
	}
}

// forget drops what is kept for a deleted VM so its name can be reused.
func (c *ResultConsumer) forget(ctx context.Context, vmName string) {
	if err := c.infra.Redis.Delete(ctx, infra.VMStatusKey(vmName)); err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Result Consumer] Failed to clear cached status for '%s': %v", vmName, err)
	}
	if c.infra.KeyStore == nil {
		return
	}
	if err := c.infra.KeyStore.DeleteKeyPair(ctx, vmName); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Result Consumer] Failed to delete SSH key for '%s': %v", vmName, err)
	}
}

func (c *ResultConsumer) notify(ctx context.Context, op *entity.Operation, action produce.Action) {
	notifier := c.infra.Produce.NotificationService
	var err error
	if op.Status == entity.OperationStatusSucceeded {
		err = notifier.NotifySucceeded(ctx, op.ID.String(), op.VMName, action, op.Message)
	} else {
		err = notifier.NotifyFailed(ctx, op.ID.String(), op.VMName, action, op.Message)
	}
	if err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Result Consumer] Failed to publish notification for %s: %v", op.ID, err)
	}
}
