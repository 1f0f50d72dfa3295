package amqp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.acked = append(f.acked, tag)
	return nil
}
func (f *fakeAcknowledger) Nack(uint64, bool, bool) error { return nil }
func (f *fakeAcknowledger) Reject(uint64, bool) error     { return nil }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fakeChannel struct {
	exchange, key string
	published     []amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key = exchange, key
	f.published = append(f.published, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSource_Next_AcksOnCommit(t *testing.T) {
	ack := &fakeAcknowledger{}
	ch := make(chan amqp.Delivery, 1)
	ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 9, MessageId: "m-1", Body: []byte(`{"city":"Lima"}`)}

	s := newSource("ColaDeEsperaClima", ch, nopCloser{}, discardLogger())
	d, err := s.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "m-1", d.ID)
	assert.Equal(t, "ColaDeEsperaClima", d.Source)
	assert.JSONEq(t, `{"city":"Lima"}`, string(d.Payload))
	assert.Empty(t, ack.acked)

	require.NoError(t, d.Commit(context.Background()))
	assert.Equal(t, []uint64{9}, ack.acked)
}

func TestSource_Next_WithoutMessageID(t *testing.T) {
	ch := make(chan amqp.Delivery, 1)
	ch <- amqp.Delivery{Acknowledger: &fakeAcknowledger{}, DeliveryTag: 4}

	d, err := newSource("q", ch, nopCloser{}, discardLogger()).Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q/4", d.ID)
}

func TestSource_Next_ClosedChannel(t *testing.T) {
	ch := make(chan amqp.Delivery)
	close(ch)

	_, err := newSource("q", ch, nopCloser{}, discardLogger()).Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, domain.ErrSourceClosed)
}

func TestSource_Next_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSource("q", make(chan amqp.Delivery), nopCloser{}, discardLogger()).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_Send(t *testing.T) {
	fc := &fakeChannel{}
	p := &Publisher{queue: "ColaDeEsperaClima-Test", ch: fc, closer: nopCloser{}, logger: discardLogger()}

	id, err := p.Send(context.Background(), domain.CityQuery{City: "Monterrey"})
	require.NoError(t, err)

	assert.Empty(t, fc.exchange)
	assert.Equal(t, "ColaDeEsperaClima-Test", fc.key)
	require.Len(t, fc.published, 1)
	msg := fc.published[0]
	assert.Equal(t, id, msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	queries, err := domain.ParseBatch(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, []domain.CityQuery{{City: "Monterrey"}}, queries)
}
