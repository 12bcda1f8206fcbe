package amqp

import (
	"encoding/json"
	"time"
)

// DonationReceiptMessage is a lightweight message queueing a payment for the
// ledger mirror. It carries only the payment ID and version; the worker
// fetches the full payment from the database.
type DonationReceiptMessage struct {
	PaymentID int64     `json:"payment_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDonationReceiptMessage creates a new receipt message with just ID and version
func NewDonationReceiptMessage(paymentID, version int64) *DonationReceiptMessage {
	return &DonationReceiptMessage{
		PaymentID: paymentID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DonationReceiptMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DonationReceiptMessageFromJSON creates a message from JSON bytes
func DonationReceiptMessageFromJSON(data []byte) (*DonationReceiptMessage, error) {
	var msg DonationReceiptMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
