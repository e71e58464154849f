package amqp

import (
	"encoding/json"
	"fmt"

	"moneytracker/internal/core"
)

// EncodeLedgerEvent converts the event to the JSON message body.
func EncodeLedgerEvent(e core.LedgerEvent) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeLedgerEvent parses a message body. Messages without a kind are
// rejected so a malformed delivery is dropped instead of requeued forever.
func DecodeLedgerEvent(data []byte) (core.LedgerEvent, error) {
	var e core.LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return core.LedgerEvent{}, err
	}
	if e.Kind == "" {
		return core.LedgerEvent{}, fmt.Errorf("ledger event without kind")
	}
	return e, nil
}
