package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// RegisteredEvent is the payload published once a product is mirrored.
type RegisteredEvent struct {
	Identifier  uint64    `json:"identifier"`
	ContractID  uint64    `json:"contractId"`
	BlockNumber uint64    `json:"blockNumber"`
	TxHash      string    `json:"txHash"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	AddedAt     time.Time `json:"addedAt"`
}

// KafkaPublisher publishes registration events keyed by identifier.
type KafkaPublisher struct {
	producer producer
	close    func()
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{producer: client, close: client.Close}, nil
}

func (p *KafkaPublisher) PublishRegistered(ctx context.Context, record domain.ProductRecord, conf domain.Confirmation) error {
	value, err := json.Marshal(RegisteredEvent{
		Identifier:  record.Identifier,
		ContractID:  conf.ContractID,
		BlockNumber: conf.BlockNumber,
		TxHash:      conf.TxHash,
		Name:        record.Name,
		Owner:       record.Owner,
		AddedAt:     record.AddedAt,
	})
	if err != nil {
		return fmt.Errorf("encode registered event: %w", err)
	}

	rec := &kgo.Record{
		Key:   []byte(strconv.FormatUint(record.Identifier, 10)),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce registered event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}
