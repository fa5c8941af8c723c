package kafka

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublish_DropsWhenInboxFull(t *testing.T) {
	p := &Producer{inbox: make(chan kafka.Message, 1), closeCh: make(chan struct{}), log: zap.NewNop()}

	p.Publish([]byte("ORD-1"), []byte("a"))
	p.Publish([]byte("ORD-2"), []byte("b"))

	require.Len(t, p.inbox, 1)
	m := <-p.inbox
	assert.Equal(t, "ORD-1", string(m.Key))
}

func TestPublish_AfterCloseIsDropped(t *testing.T) {
	p := &Producer{inbox: make(chan kafka.Message, 4), closeCh: make(chan struct{}), log: zap.NewNop()}
	p.Publish([]byte("ORD-1"), []byte("a"))

	p.Close()
	assert.NotPanics(t, func() {
		p.Publish([]byte("ORD-2"), []byte("late"))
		p.Close()
	})

	var keys []string
	for m := range p.inbox {
		keys = append(keys, string(m.Key))
	}
	assert.Equal(t, []string{"ORD-1"}, keys)
}

func TestEventHeaders(t *testing.T) {
	hs := EventHeaders("OrderFinalized", 1)
	require.Len(t, hs, 2)
	assert.Equal(t, "x-event-type", hs[0].Key)
	assert.Equal(t, "OrderFinalized", string(hs[0].Value))
	assert.Equal(t, "1", string(hs[1].Value))
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderNumber string `json:"order_number"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(`{"order_number":"ORD-1A2B3C4D"}`))
	require.NoError(t, err)
	assert.Equal(t, "ORD-1A2B3C4D", got.OrderNumber)

	_, err = UnwrapPayload[payload](json.RawMessage(`{`))
	assert.Error(t, err)
}
