package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

// KafkaQueue is the production JobQueue, one topic for all job kinds.
type KafkaQueue struct {
	producer *kafka.Producer
	brokers  string
	groupID  string
	topic    string
}

var (
	_ JobQueue = (*KafkaQueue)(nil)
	_ Consumer = (*KafkaQueue)(nil)
)

func NewKafkaQueue(brokers, topic, groupID string) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, err
	}

	return &KafkaQueue{
		producer: producer,
		brokers:  brokers,
		groupID:  groupID,
		topic:    topic,
	}, nil
}

func (q *KafkaQueue) Enqueue(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg, err := json.Marshal(Message{Name: name, Payload: data})
	if err != nil {
		return err
	}

	return q.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &q.topic, Partition: kafka.PartitionAny},
		Value:          msg,
	}, nil)
}

// Consume reads jobs until ctx is cancelled. Handler errors are logged
// and the message is committed anyway; jobs are best-effort refreshes,
// not transactional work.
func (q *KafkaQueue) Consume(ctx context.Context, handler func(ctx context.Context, msg Message) error) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": q.brokers,
		"group.id":          q.groupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.SubscribeTopics([]string{q.topic}, nil); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := consumer.ReadMessage(time.Second)
		if err != nil {
			if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			logrus.Errorf("queue: read message: %v", err)
			continue
		}

		var msg Message
		if err := json.Unmarshal(raw.Value, &msg); err != nil {
			logrus.Errorf("queue: malformed message: %v", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			logrus.Errorf("queue: job %s failed: %v", msg.Name, err)
		}
	}
}

func (q *KafkaQueue) Close() {
	q.producer.Close()
}
