package events

import (
	"fmt"
	"log/slog"
)

// Backend names.
const (
	BackendNone  = "none"
	BackendLog   = "log"
	BackendAMQP  = "amqp"
	BackendKafka = "kafka"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	AMQP    AMQPConfig
	Kafka   KafkaConfig
}

// Open returns the publisher for cfg.Backend.
func Open(cfg Config, logger *slog.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendLog:
		return NewLog(logger), nil
	case BackendAMQP:
		return NewAMQPPublisher(cfg.AMQP)
	case BackendKafka:
		return NewKafkaPublisher(cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
