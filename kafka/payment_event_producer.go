package kafka

import (
	"context"
	"encoding/json"
	"log"

	"tenant-payment-service/models"

	"github.com/segmentio/kafka-go"
)

type PaymentEventProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewPaymentEventProducer(brokers []string, topic string) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("[TenantPaymentService][KafkaProducer] initialized topic=%s brokers=%v", topic, brokers)
	return &PaymentEventProducer{writer: w, topic: topic}
}

func (p *PaymentEventProducer) SendPaymentEvent(event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.InvoiceID),
		Value: data,
	}

	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		log.Printf("[TenantPaymentService] failed to send payment event: %v", err)
		return err
	}
	return nil
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}
