package app

import "time"

// Config holds debit service configuration loaded from the environment.
type Config struct {
	// Port is the gRPC listen port.
	Port int `env:"DEBITFLOW_PORT" envDefault:"8080"`
	// DBPath is the transaction store path.
	DBPath string `env:"DEBITFLOW_DB_PATH" envDefault:"debit.db"`
	// AttemptDBPath is the command attempt audit store path.
	AttemptDBPath string `env:"DEBITFLOW_ATTEMPT_DB_PATH" envDefault:"attempts.db"`
	// Workers is the command listener worker count.
	Workers int `env:"DEBITFLOW_WORKERS" envDefault:"4"`
	// QueueSize bounds the in-memory command queue.
	QueueSize int `env:"DEBITFLOW_QUEUE_SIZE" envDefault:"256"`
	// SweepInterval is the period between scheduler sweeps.
	SweepInterval time.Duration `env:"DEBITFLOW_SWEEP_INTERVAL" envDefault:"30s"`
	// AMQPURL, when set, enables publishing lifecycle events to RabbitMQ.
	AMQPURL string `env:"DEBITFLOW_AMQP_URL"`
}
