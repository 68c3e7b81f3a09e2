package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	VMExchange = "vm.exchange"

	// ProvisionQueue is consumed by the provisioning worker that talks to Azure
	ProvisionQueue      = "vm.provision"
	ProvisionRoutingKey = "vm.provision"

	// ExecutionQueue is consumed by the SSH/Ansible execution worker
	ExecutionQueue      = "vm.execute"
	ExecutionRoutingKey = "vm.execute"

	// ResultQueue is received from both workers once an operation settles
	ResultQueue      = "vm.result"
	ResultRoutingKey = "vm.result"
)

type VMProduceService struct {
	channel *amqp.Channel
}

func InitVMProduceService(channel *amqp.Channel) *VMProduceService {
	service := &VMProduceService{
		channel: channel,
	}

	err := channel.ExchangeDeclare(
		VMExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare VM exchange: " + err.Error())
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{ProvisionQueue, ProvisionRoutingKey},
		{ExecutionQueue, ExecutionRoutingKey},
		{ResultQueue, ResultRoutingKey},
	}

	for _, b := range bindings {
		_, err = channel.QueueDeclare(
			b.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			panic(fmt.Sprintf("Failed to declare %s queue: %v", b.queue, err))
		}

		err = channel.QueueBind(
			b.queue,
			b.routingKey,
			VMExchange,
			false,
			nil,
		)
		if err != nil {
			panic(fmt.Sprintf("Failed to bind %s queue: %v", b.queue, err))
		}
	}

	return service
}

// PublishProvision hands a VM lifecycle action to the provisioning worker
func (s *VMProduceService) PublishProvision(ctx context.Context, msg ProvisionMessage) error {
	if msg.SubscriptionID == "" {
		return ErrNoSubscription
	}
	msg.Timestamp = time.Now().Unix()
	return s.publish(ctx, ProvisionRoutingKey, msg)
}

// PublishExecution hands a command or playbook run to the execution worker
func (s *VMProduceService) PublishExecution(ctx context.Context, msg ExecutionMessage) error {
	msg.Timestamp = time.Now().Unix()
	return s.publish(ctx, ExecutionRoutingKey, msg)
}

func (s *VMProduceService) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", routingKey, err)
	}

	return s.channel.PublishWithContext(
		ctx,
		VMExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
