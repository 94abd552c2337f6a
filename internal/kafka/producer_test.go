package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_ProduceMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]any
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["recipient"] != "a@x.com" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewProducerFromSync(sp)
	err := p.ProduceMessage(context.Background(), "account_events", "user-1", map[string]any{"recipient": "a@x.com"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_SendError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFromSync(sp)
	err := p.ProduceMessage(context.Background(), "account_events", "", map[string]any{"k": "v"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
