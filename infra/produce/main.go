package produce

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// VMPublisher hands provisioning and execution jobs to the workers.
type VMPublisher interface {
	PublishProvision(ctx context.Context, msg ProvisionMessage) error
	PublishExecution(ctx context.Context, msg ExecutionMessage) error
}

type Produce struct {
	VMService           VMPublisher
	NotificationService *NotificationService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	vmService := InitVMProduceService(channel)
	if vmService == nil {
		panic("Failed to initialize VM produce service")
	}

	notificationService := InitNotificationService(channel)
	if notificationService == nil {
		panic("Failed to initialize Notification service")
	}

	produceInstance = &Produce{
		VMService:           vmService,
		NotificationService: notificationService,
	}

	return produceInstance
}

