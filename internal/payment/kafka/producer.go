package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-payments/internal/config"
	"ms-payments/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

// Publish writes a raw message to the given topic
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) publishEvent(topic, eventType string, payment models.Payment, bookingID string) error {
	event := models.PaymentEvent{
		Type:      eventType,
		PaymentID: payment.PaymentID,
		BookingID: bookingID,
		UserID:    payment.UserID,
		CaptureID: payment.CaptureID,
		Timestamp: time.Now(),
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(topic, payment.PaymentID, msgBytes)
}

// PublishPaymentCreated streams the pending-payment creation event
func (p *Producer) PublishPaymentCreated(payment models.Payment) error {
	return p.publishEvent(p.Topics.PaymentCreated, "payment.created", payment, "")
}

// PublishPaymentCaptured streams the successful capture event
func (p *Producer) PublishPaymentCaptured(payment models.Payment) error {
	return p.publishEvent(p.Topics.PaymentCaptured, "payment.captured", payment, "")
}

// PublishPaymentRolledBack streams the compensation event for a failed capture
func (p *Producer) PublishPaymentRolledBack(payment models.Payment, bookingID string) error {
	return p.publishEvent(p.Topics.PaymentRolledBack, "payment.rolled_back", payment, bookingID)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
