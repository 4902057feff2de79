package filestore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dataviz/pkg/configs"
)

func TestObjectBodySize(t *testing.T) {
	data := []byte("name,age\nAlice,30\n")

	body, size, err := objectBody(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, len(data), size)

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// 不暴露 Len 的 reader 被读入内存
	body, size, err = objectBody(iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.EqualValues(t, len(data), size)

	got, err = io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, _, err = objectBody(iotest.ErrReader(io.ErrUnexpectedEOF))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// fakeS3 记录收到的对象写入.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	sizes   map[string]int64
	queries []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		size := r.ContentLength
		if decoded := r.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" {
			size, _ = strconv.ParseInt(decoded, 10, 64)
		}

		f.objects[r.URL.Path] = body
		f.sizes[r.URL.Path] = size
		f.queries = append(f.queries, r.URL.RawQuery)

		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestS3SaveSendsKnownSize(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, sizes: map[string]int64{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3(context.Background(), configs.S3Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "dataviz",
		SecretAccessKey: "dataviz-secret",
		BucketName:      "dataviz",
		Region:          "us-east-1",
		Prefix:          "raw",
	}, configs.CircuitBreakerConfig{})
	require.NoError(t, err)

	data := []byte("name,age\nAlice,30\nBob,25\n")

	p, err := store.Save(context.Background(), "people.csv", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "s3://dataviz/raw/people.csv", p)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	assert.EqualValues(t, len(data), fake.sizes["/dataviz/raw/people.csv"])
	// 单次 PUT，没有分片上传的 uploadId
	require.Len(t, fake.queries, 1)
	assert.NotContains(t, fake.queries[0], "uploadId")

	_, err = store.Save(context.Background(), "../escape.csv", bytes.NewReader(data))
	require.ErrorIs(t, err, ErrInvalidName)
}
