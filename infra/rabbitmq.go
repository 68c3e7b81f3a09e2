package infra

import (
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-vm-orchestrator/config"
)

type RabbitMQClient struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func InitRabbitMQClient(cfg *config.EnvConfig) *RabbitMQClient {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQ.Username,
		cfg.RabbitMQ.Password,
		cfg.RabbitMQ.Host,
		cfg.RabbitMQ.Port,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		log.Fatalf("RabbitMQ connection failed: %v", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Fatalf("RabbitMQ channel failed: %v", err)
	}

	// One unacknowledged result at a time per consumer.
	if err := channel.Qos(1, 0, false); err != nil {
		log.Printf("Warning: Failed to set RabbitMQ QoS: %v", err)
	}

	log.Println("Connected to RabbitMQ:", cfg.RabbitMQ.Port+" on "+cfg.RabbitMQ.Host)

	return &RabbitMQClient{
		Connection: conn,
		Channel:    channel,
	}
}

func (r *RabbitMQClient) Ping() error {
	if r.Connection == nil || r.Connection.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	if r.Channel == nil || r.Channel.IsClosed() {
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

func (r *RabbitMQClient) Close() error {
	return errors.Join(r.Channel.Close(), r.Connection.Close())
}
