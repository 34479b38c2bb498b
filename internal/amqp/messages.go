package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record kinds carried by sync messages.
const (
	KindVehicle     = "vehicle"
	KindTransaction = "transaction"
)

// Sync operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// SyncMessage announces that a record changed in SQLite and must be
// mirrored to Google Sheets. The worker reloads the record by id.
type SyncMessage struct {
	Kind      string    `json:"kind"`
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(kind, id string, version int64) *SyncMessage {
	return &SyncMessage{
		Kind:      kind,
		Op:        OpUpsert,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewDeleteMessage announces a hard-deleted transaction.
func NewDeleteMessage(id string) *SyncMessage {
	return &SyncMessage{
		Kind:      KindTransaction,
		Op:        OpDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes and checks a sync message.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind != KindVehicle && msg.Kind != KindTransaction {
		return nil, fmt.Errorf("unknown record kind %q", msg.Kind)
	}
	if msg.Op == "" {
		msg.Op = OpUpsert
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("sync message without id")
	}
	return &msg, nil
}

// AlertMessage is a maintenance or document alert raised by the scanner.
type AlertMessage struct {
	VehicleID     string    `json:"vehicleId"`
	Plate         string    `json:"plate"`
	Subject       string    `json:"subject"`
	Level         string    `json:"level"`
	Reason        string    `json:"reason"`
	Message       string    `json:"message"`
	KmRemaining   *int      `json:"kmRemaining,omitempty"`
	DaysRemaining *int      `json:"daysRemaining,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
