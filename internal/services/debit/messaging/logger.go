package messaging

import (
	"context"
	"log"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/event"
)

// EventLogger writes one log line per lifecycle event. Terminal transitions
// log at a distinct prefix so operators can grep for settlement outcomes.
type EventLogger struct{}

// HandleEvent satisfies EventHandler.
func (EventLogger) HandleEvent(_ context.Context, evt event.Event) error {
	switch evt.Type {
	case event.TypeProcessed:
		log.Printf("debit event settled type=%s transaction_id=%s correlation_id=%s", evt.Type, evt.TransactionID, evt.CorrelationID)
	case event.TypeFailed:
		log.Printf("debit event settled type=%s transaction_id=%s correlation_id=%s payload=%q", evt.Type, evt.TransactionID, evt.CorrelationID, evt.Payload)
	default:
		log.Printf("debit event type=%s transaction_id=%s correlation_id=%s", evt.Type, evt.TransactionID, evt.CorrelationID)
	}
	return nil
}
