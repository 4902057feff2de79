package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/model"
	"github.com/yeisme/dataviz/pkg/internal/service"
	dbc "github.com/yeisme/dataviz/pkg/internal/storage/db"
	"github.com/yeisme/dataviz/pkg/internal/storage/filestore"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
	"github.com/yeisme/dataviz/pkg/queue"
)

type harness struct {
	db      *dbc.Client
	fs      afero.Fs
	files   *filestore.LocalStore
	records *records.GormStore
	pubsub  *gochannel.GoChannel
	events  *service.Events
	catalog *service.CatalogService
	ingest  *service.IngestService
}

func allEvents() configs.EventsConfig {
	return configs.EventsConfig{
		Enabled: true,
		Upload:  configs.UploadEventsConfig{Stored: true, Ingested: true, Rejected: true, Failed: true},
	}
}

func ingestConfig() configs.IngestConfig {
	return configs.IngestConfig{
		AllowedContentTypes: []string{configs.ContentTypeCSV, configs.ContentTypeXLSX},
		MaxUploadBytes:      1 << 20,
		BatchSize:           2,
		StrictColumns:       true,
		PendingGrace:        time.Minute,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "dataviz.db") + "?_pragma=foreign_keys(1)"

	client, err := dbc.Open(ctx, sqlite.Open(dsn), 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, records.Migrate(ctx, client))

	h := &harness{db: client, fs: afero.NewMemMapFs()}
	h.files = filestore.NewLocalWithFs(h.fs, "uploads")
	h.records = records.New(client, 2)
	h.pubsub = gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = h.pubsub.Close() })

	h.events = service.NewEvents(h.pubsub, allEvents())
	h.catalog = service.NewCatalogService(h.files, h.records)
	h.ingest = service.NewIngestService(h.files, h.records, ingestConfig(),
		service.WithEvents(h.events), service.WithCatalog(h.catalog))

	return h
}

func (h *harness) subscribe(t *testing.T, topic string) <-chan *message.Message {
	t.Helper()

	ch, err := h.pubsub.Subscribe(context.Background(), topic)
	require.NoError(t, err)

	return ch
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()

	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func csvRequest(name, body string) service.IngestRequest {
	return service.IngestRequest{
		UserID:      1,
		Filename:    name,
		ContentType: "text/csv",
		Body:        strings.NewReader(body),
	}
}

// failingRecords 数据行提交总是失败.
type failingRecords struct {
	*records.GormStore
}

func (failingRecords) CreateRecords(context.Context, uint, []model.DataRecord) (int, error) {
	return 0, errors.New("disk full")
}

func TestIngestCSV(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ingested := h.subscribe(t, queue.TopicUploadIngested)

	res, err := h.ingest.Ingest(ctx, csvRequest("people.csv", "Name,Age\nAlice,30\nBob,25\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordCount)
	assert.Equal(t, []string{"name", "age"}, res.Columns)
	assert.NotZero(t, res.UploadID)

	ok, err := h.files.Exists(ctx, "people.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := h.records.GetUpload(ctx, res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadComplete, u.Status)
	assert.Equal(t, 2, u.RecordCount)
	assert.NotEmpty(t, u.Checksum)

	page, err := h.catalog.ListRecords(ctx, res.UploadID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "Alice", page.Records[0].Data["name"])
	assert.EqualValues(t, 30, page.Records[0].Data["age"])
	assert.Equal(t, 1, page.Records[1].RowIndex)

	msg := receive(t, ingested)
	ev, err := queue.ParseUploadIngested(msg)
	require.NoError(t, err)
	assert.Equal(t, res.UploadID, ev.Payload.UploadID)
	assert.Equal(t, 2, ev.Payload.RecordCount)
	assert.Equal(t, "people.csv", ev.Payload.File.Filename)
}

func TestIngestAcceptsMediaTypeParameters(t *testing.T) {
	h := newHarness(t)

	req := csvRequest("a.csv", "x\n1\n")
	req.ContentType = "text/csv; charset=utf-8"

	res, err := h.ingest.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordCount)
}

func TestIngestUnsupportedMediaType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := csvRequest("notes.txt", "hello")
	req.ContentType = "text/plain"

	_, err := h.ingest.Ingest(ctx, req)
	require.ErrorIs(t, err, service.ErrUnsupportedMediaType)

	ok, err := h.files.Exists(ctx, "notes.txt")
	require.NoError(t, err)
	assert.False(t, ok, "rejected media type must not be stored")

	uploads, err := h.records.ListUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestIngestInvalidFilename(t *testing.T) {
	h := newHarness(t)

	_, err := h.ingest.Ingest(context.Background(), csvRequest("../escape.csv", "a\n1\n"))
	require.ErrorIs(t, err, service.ErrInvalidFilename)
}

func TestIngestTooLarge(t *testing.T) {
	h := newHarness(t)
	cfg := ingestConfig()
	cfg.MaxUploadBytes = 8
	ing := service.NewIngestService(h.files, h.records, cfg)

	_, err := ing.Ingest(context.Background(), csvRequest("big.csv", "a,b\n1,2\n3,4\n"))
	require.ErrorIs(t, err, service.ErrTooLarge)

	ok, err := h.files.Exists(context.Background(), "big.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestUnparseableContentKeepsFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rejected := h.subscribe(t, queue.TopicUploadRejected)

	req := csvRequest("broken.xlsx", "definitely not a zip archive")
	req.ContentType = configs.ContentTypeXLSX

	_, err := h.ingest.Ingest(ctx, req)
	require.ErrorIs(t, err, service.ErrUnsupportedContent)

	var ce *service.ContentError
	require.ErrorAs(t, err, &ce)
	assert.NotEmpty(t, ce.Reason())

	ok, err := h.files.Exists(ctx, "broken.xlsx")
	require.NoError(t, err)
	assert.True(t, ok, "saved file is kept after a parse failure")

	uploads, err := h.records.ListUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploads)

	msg := receive(t, rejected)
	assert.Equal(t, queue.TopicUploadRejected, msg.Metadata.Get("topic"))
}

func TestIngestColumnCollision(t *testing.T) {
	h := newHarness(t)

	_, err := h.ingest.Ingest(context.Background(), csvRequest("dup.csv", "Full Name,full name\na,b\n"))
	require.ErrorIs(t, err, service.ErrUnsupportedContent)
}

func TestIngestPartialCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	failed := h.subscribe(t, queue.TopicUploadFailed)

	ing := service.NewIngestService(h.files, failingRecords{h.records}, ingestConfig(), service.WithEvents(h.events))

	_, err := ing.Ingest(ctx, csvRequest("people.csv", "name\nAlice\n"))
	require.ErrorIs(t, err, service.ErrPartialCommit)

	var pe *service.PartialCommitError
	require.ErrorAs(t, err, &pe)
	require.NotZero(t, pe.UploadID)

	u, err := h.records.GetUpload(ctx, pe.UploadID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadFailed, u.Status)
	assert.Contains(t, u.Error, "disk full")

	n, err := h.records.CountRecords(ctx, pe.UploadID)
	require.NoError(t, err)
	assert.Zero(t, n)

	receive(t, failed)
}

func TestIngestSameFilenameOverwrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ingest.Ingest(ctx, csvRequest("data.csv", "a\n1\n"))
	require.NoError(t, err)
	_, err = h.ingest.Ingest(ctx, csvRequest("data.csv", "a\n1\n2\n3\n"))
	require.NoError(t, err)

	items, err := h.catalog.ListUploads(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, items[0].SizeKB, items[1].SizeKB, "both entries report the current file")
}
