package infra

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// NewKafkaProducer retries while the brokers come up.
func NewKafkaProducer(brokers []string, log *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 5 * time.Second

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Info("kafka producer initialized", zap.Strings("brokers", brokers))
			return producer, nil
		}
		log.Warn("waiting for kafka", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("start kafka producer: %w", err)
}
