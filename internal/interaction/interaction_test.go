package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealer/kiosk/internal/config"
	"dealer/kiosk/internal/logging"
)

type recordingPublisher struct {
	got []Record
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, rec Record) error {
	p.got = append(p.got, rec)
	return p.err
}

type failingStore struct{ *MemoryStore }

func (*failingStore) Save(context.Context, *Record) error { return errors.New("disk full") }

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	st := NewMemoryStore()
	pub := &recordingPublisher{}
	s := NewService(st, pub, logging.Discard())
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	s.now = func() time.Time { return fixed }

	rec, err := s.Record(context.Background(), Record{Name: "Giba", Product: "Agro"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, fixed.UTC(), rec.Timestamp)

	all, _ := st.List(context.Background(), 10)
	require.Len(t, all, 1)
	assert.Equal(t, "Giba", all[0].Name)
	require.Len(t, pub.got, 1)
	assert.Equal(t, rec.ID, pub.got[0].ID)
}

func TestRecordKeepsGivenTimestamp(t *testing.T) {
	s := NewService(NewMemoryStore(), nil, logging.Discard())
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, err := s.Record(context.Background(), Record{Name: "Alan", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, ts, rec.Timestamp)
}

func TestPublishFailureDoesNotFailRecord(t *testing.T) {
	st := NewMemoryStore()
	s := NewService(st, &recordingPublisher{err: errors.New("nats down")}, logging.Discard())
	_, err := s.Record(context.Background(), Record{Name: "Giba"})
	require.NoError(t, err)
	all, _ := st.List(context.Background(), 10)
	assert.Len(t, all, 1)
}

func TestSaveFailureIsReturned(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewService(&failingStore{MemoryStore: NewMemoryStore()}, pub, logging.Discard())
	_, err := s.Record(context.Background(), Record{Name: "Giba"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, pub.got)
}

func TestMemoryListNewestFirst(t *testing.T) {
	st := NewMemoryStore()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = st.Save(context.Background(), &Record{ID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	got, err := st.List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestServiceListClampsLimit(t *testing.T) {
	st := NewMemoryStore()
	s := NewService(st, nil, logging.Discard())
	for i := 0; i < 60; i++ {
		_, _ = s.Record(context.Background(), Record{Name: "x"})
	}
	got, _ := s.List(context.Background(), 0)
	assert.Len(t, got, 50)
}

func TestMongoDocFieldNames(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	d := toMongoDoc(Record{ID: "r1", Name: "Giba", Product: "Agro", Timestamp: ts})
	assert.Equal(t, "Giba", d.Nome)
	assert.Equal(t, "Agro", d.Produto)
	assert.Equal(t, ts, d.DataHora)
	assert.Equal(t, Record{ID: "r1", Name: "Giba", Product: "Agro", Timestamp: ts}, d.record())
}

func TestPostgresRowRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	rec := Record{ID: "r1", SessionID: "kiosk", Name: "Giba", Product: "Agro", Timestamp: ts}
	assert.Equal(t, rec, toRow(rec).record())
	assert.Equal(t, "interactions", interactionRow{}.TableName())
}

func TestOpenStore(t *testing.T) {
	var cfg config.Config
	st, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	cfg.Interaction.Backend = "postgres"
	_, err = OpenStore(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Interaction.Backend = "mongo"
	_, err = OpenStore(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Interaction.Backend = "sqlite"
	_, err = OpenStore(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
