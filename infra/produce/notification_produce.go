package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const NotificationExchange = "notification_exchange"

// NotificationMessage announces that a VM operation has settled.
type NotificationMessage struct {
	Type        string `json:"type"`
	OperationID string `json:"operation_id"`
	VMName      string `json:"vm_name"`
	Action      Action `json:"action"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
}

type NotificationService struct {
	channel *amqp.Channel
}

func InitNotificationService(channel *amqp.Channel) *NotificationService {
	err := channel.ExchangeDeclare(
		NotificationExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Notification exchange: " + err.Error())
	}

	return &NotificationService{
		channel: channel,
	}
}

func (s *NotificationService) NotifySucceeded(ctx context.Context, operationID, vmName string, action Action, content string) error {
	return s.publishNotification(ctx, "vm.succeeded", NotificationMessage{
		Type:        "notification",
		OperationID: operationID,
		VMName:      vmName,
		Action:      action,
		Content:     content,
	})
}

func (s *NotificationService) NotifyFailed(ctx context.Context, operationID, vmName string, action Action, content string) error {
	return s.publishNotification(ctx, "vm.failed", NotificationMessage{
		Type:        "warning",
		OperationID: operationID,
		VMName:      vmName,
		Action:      action,
		Content:     content,
	})
}

func (s *NotificationService) publishNotification(ctx context.Context, routingKey string, message NotificationMessage) error {
	message.Timestamp = time.Now().Unix()

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal notification message: %w", err)
	}

	err = s.channel.PublishWithContext(
		ctx,
		NotificationExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish notification message: %w", err)
	}

	return nil
}
