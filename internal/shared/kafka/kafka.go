package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Writer = kafka.Writer

// NewWriter cria um writer para o tópico. async=true não bloqueia o chamador
// (erros de entrega só aparecem no Completion).
func NewWriter(brokers string, topic string, async bool) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mesma chave (evento) -> mesma partição
		AllowAutoTopicCreation: true,
		Async:                  async,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewReader cria um reader de consumer group. Uma partição por tópico mantém a ordem dos comandos.
func NewReader(brokers string, topic string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        strings.Split(brokers, ","),
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}
