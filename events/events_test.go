package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsIdentity(t *testing.T) {
	a := New(TypeLoanCreated, "loan-1", 1, nil)
	b := New(TypeLoanCreated, "loan-1", 1, nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestAMQPPublishing(t *testing.T) {
	evt := New(TypeRepaymentConfirmed, "loan-1", 3, map[string]string{"amount": "2000.00"})

	msg, err := amqpPublishing(evt)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, evt.ID, msg.MessageId)
	assert.Equal(t, TypeRepaymentConfirmed, msg.Headers["event_type"])

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, evt.LoanID, decoded.LoanID)
	assert.Equal(t, int64(3), decoded.Revision)
}

func TestRoutingKey(t *testing.T) {
	evt := New(TypeInstallmentPaid, "loan-1", 2, nil)

	assert.Equal(t, TypeInstallmentPaid, routingKey(AMQPConfig{}, evt))
	assert.Equal(t, "loans", routingKey(AMQPConfig{RoutingKey: "loans"}, evt))
}

func TestKafkaMessage_KeyedByLoan(t *testing.T) {
	evt := New(TypeLoanPaidOff, "loan-42", 7, nil)

	msg, err := kafkaMessage(evt)
	require.NoError(t, err)

	assert.Equal(t, []byte("loan-42"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(TypeLoanPaidOff), msg.Headers[0].Value)
}

func TestMarshalFailure(t *testing.T) {
	evt := New(TypeLoanCreated, "loan-1", 1, make(chan int))

	_, err := kafkaMessage(evt)
	assert.Error(t, err)
	_, err = amqpPublishing(evt)
	assert.Error(t, err)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

func TestOpen(t *testing.T) {
	p, err := Open(Config{Backend: BackendNone}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)

	p, err = Open(Config{Backend: BackendLog}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), New(TypeLoanCreated, "l", 1, nil)))

	p, err = Open(Config{Backend: BackendKafka, Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "loans"}}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())

	_, err = Open(Config{Backend: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), New(TypeLoanCreated, "l", 1, nil)))
	require.NoError(t, r.Publish(context.Background(), New(TypeInstallmentPaid, "l", 2, nil)))

	assert.Equal(t, []string{TypeLoanCreated, TypeInstallmentPaid}, r.Types())

	r.Err = errors.New("broker down")
	assert.Error(t, r.Publish(context.Background(), New(TypeLoanPaidOff, "l", 3, nil)))
	assert.Len(t, r.Events(), 2)
}
