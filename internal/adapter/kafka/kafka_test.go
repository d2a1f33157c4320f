package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestWriter(fw *fakeWriter) *Writer {
	return &Writer{writer: fw, topic: "storm-reports", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func sampleRow() domain.CanonicalRow {
	ts := "2023-06-01T15:30:00Z"
	return domain.CanonicalRow{
		Date:         "2023-06-01",
		Time:         "1530",
		Type:         domain.Hail,
		Location:     "8 ESE Chappel",
		County:       "San Saba",
		State:        "TX",
		Latitude:     31.02,
		Longitude:    -98.44,
		UTCTimestamp: &ts,
	}
}

func TestSerializeToMessage(t *testing.T) {
	row := sampleRow()

	msg, err := serializeToMessage(row, "run-1")
	require.NoError(t, err)

	assert.Equal(t, []byte(domain.RowKey(row)), msg.Key)
	assert.JSONEq(t, `{
		"date": "2023-06-01",
		"time": "1530",
		"type": "hail",
		"location": "8 ESE Chappel",
		"county": "San Saba",
		"state": "TX",
		"latitude": 31.02,
		"longitude": -98.44,
		"utc_timestamp": "2023-06-01T15:30:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, []byte("hail"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
}

func TestSerializeToMessage_NullTimestampNoRunID(t *testing.T) {
	row := sampleRow()
	row.UTCTimestamp = nil

	msg, err := serializeToMessage(row, "")
	require.NoError(t, err)

	assert.Contains(t, string(msg.Value), `"utc_timestamp":null`)
	assert.Len(t, msg.Headers, 1)
}

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw)

	rows := []domain.CanonicalRow{sampleRow(), sampleRow()}
	rows[1].Type = domain.Wind

	ctx := domain.ContextWithRunID(context.Background(), "run-7")
	require.NoError(t, w.LoadBatch(ctx, rows))

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("wind"), fw.msgs[1].Headers[0].Value)
	assert.Equal(t, []byte("run-7"), fw.msgs[0].Headers[1].Value)
	assert.NotEqual(t, fw.msgs[0].Key, fw.msgs[1].Key)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_LoadBatchEmpty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("unreachable")}
	require.NoError(t, newTestWriter(fw).LoadBatch(context.Background(), nil))
}

func TestWriter_LoadBatchError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}

	err := newTestWriter(fw).LoadBatch(context.Background(), []domain.CanonicalRow{sampleRow()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to storm-reports")
}
