// Package rabbitmq содержит подключение к RabbitMQ и публикацию событий
// жизненного цикла подписок для внешних потребителей.
package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// LifecycleExchange — durable topic exchange для событий подписок.
const LifecycleExchange = "subscription.events"

// Connect открывает соединение и канал RabbitMQ по строке подключения.
func Connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	const op = "rabbitmq.Connect"
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, ch, nil
}

// SetupExchange объявляет exchange для событий жизненного цикла подписок.
func SetupExchange(ch *amqp.Channel) error {
	const op = "rabbitmq.SetupExchange"
	if err := ch.ExchangeDeclare(
		LifecycleExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
