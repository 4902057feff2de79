package records_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yeisme/dataviz/pkg/internal/model"
	dbc "github.com/yeisme/dataviz/pkg/internal/storage/db"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
)

func newStore(t *testing.T) (*records.GormStore, *dbc.Client) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "records.db") + "?_pragma=foreign_keys(1)"

	client, err := dbc.Open(context.Background(), sqlite.Open(dsn), 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, records.Migrate(context.Background(), client))

	return records.New(client, 2), client
}

func TestCreateUploadAndRecords(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	u := &model.Upload{UserID: 7, Filename: "people.csv", Columns: datatypes.JSONSlice[string]{"name", "age"}}
	require.NoError(t, s.CreateUpload(ctx, u))
	require.NotZero(t, u.ID)
	assert.Equal(t, model.UploadPending, u.Status)
	assert.False(t, u.UploadedAt.IsZero())

	recs := []model.DataRecord{
		{RowIndex: 0, Data: datatypes.JSONMap{"name": "Alice", "age": 30}},
		{RowIndex: 1, Data: datatypes.JSONMap{"name": "Bob", "age": 25}},
		{RowIndex: 2, Data: datatypes.JSONMap{"name": "Carol", "age": nil}},
	}

	n, err := s.CreateRecords(ctx, u.ID, recs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadComplete, got.Status)
	assert.Equal(t, 3, got.RecordCount)
	assert.Equal(t, []string{"name", "age"}, []string(got.Columns))

	page, total, err := s.ListRecords(ctx, u.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "Bob", page[0].Data["name"])
	assert.Equal(t, "Carol", page[1].Data["name"])
	assert.Nil(t, page[1].Data["age"])

	count, err := s.CountRecords(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCreateRecordsRequiresExistingUpload(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.CreateRecords(ctx, 999, []model.DataRecord{{Data: datatypes.JSONMap{"a": 1}}})
	require.Error(t, err)

	// 事务回滚，不留下孤立数据行
	count, err := s.CountRecords(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateRecordsEmptyBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	u := &model.Upload{UserID: 1, Filename: "empty.csv"}
	require.NoError(t, s.CreateUpload(ctx, u))

	n, err := s.CreateRecords(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadComplete, got.Status)
}

func TestListUploadsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	for _, name := range []string{"c.csv", "a.csv", "b.csv"} {
		require.NoError(t, s.CreateUpload(ctx, &model.Upload{UserID: 1, Filename: name}))
	}

	uploads, err := s.ListUploads(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 3)
	assert.Equal(t, "c.csv", uploads[0].Filename)
	assert.Equal(t, "a.csv", uploads[1].Filename)
	assert.Equal(t, "b.csv", uploads[2].Filename)
}

func TestMarkFailedAndNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	u := &model.Upload{UserID: 1, Filename: "x.csv"}
	require.NoError(t, s.CreateUpload(ctx, u))
	require.NoError(t, s.MarkFailed(ctx, u.ID, "disk full"))

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadFailed, got.Status)
	assert.Equal(t, "disk full", got.Error)

	_, err = s.GetUpload(ctx, 12345)
	assert.ErrorIs(t, err, records.ErrNotFound)
	assert.ErrorIs(t, s.MarkFailed(ctx, 12345, "x"), records.ErrNotFound)
}

func TestStatusOnlyLeavesPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	u := &model.Upload{UserID: 1, Filename: "done.csv"}
	require.NoError(t, s.CreateUpload(ctx, u))

	n, err := s.CreateRecords(ctx, u.ID, []model.DataRecord{
		{Data: datatypes.JSONMap{"name": "Alice"}},
		{Data: datatypes.JSONMap{"name": "Bob"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// 已 complete 的 Upload 不会被迟到的对账改写
	assert.ErrorIs(t, s.MarkFailed(ctx, u.ID, "ingestion interrupted"), records.ErrNotPending)
	assert.ErrorIs(t, s.MarkComplete(ctx, u.ID, 0), records.ErrNotPending)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadComplete, got.Status)
	assert.Equal(t, 2, got.RecordCount)
	assert.Empty(t, got.Error)

	failed := &model.Upload{UserID: 1, Filename: "bad.csv"}
	require.NoError(t, s.CreateUpload(ctx, failed))
	require.NoError(t, s.MarkFailed(ctx, failed.ID, "disk full"))
	assert.ErrorIs(t, s.MarkComplete(ctx, failed.ID, 3), records.ErrNotPending)
}

func TestListStalePending(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)

	old := &model.Upload{UserID: 1, Filename: "old.csv"}
	require.NoError(t, s.CreateUpload(ctx, old))
	require.NoError(t, client.Model(&model.Upload{}).Where("id = ?", old.ID).
		Update("uploaded_at", time.Now().Add(-time.Hour)).Error)

	fresh := &model.Upload{UserID: 1, Filename: "fresh.csv"}
	require.NoError(t, s.CreateUpload(ctx, fresh))

	done := &model.Upload{UserID: 1, Filename: "done.csv", Status: model.UploadComplete}
	require.NoError(t, s.CreateUpload(ctx, done))
	require.NoError(t, client.Model(&model.Upload{}).Where("id = ?", done.ID).
		Update("uploaded_at", time.Now().Add(-time.Hour)).Error)

	stale, err := s.ListStalePending(ctx, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old.csv", stale[0].Filename)
}
