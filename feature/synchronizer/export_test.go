package synchronizer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"plaid-sync/core/storage/mocks"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listing(keys ...string) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k}
	}
	close(ch)
	return ch
}

func TestExporter_Key(t *testing.T) {
	e := NewExporter(new(mocks.Client), "bucket", "/reports/", 0, zap.NewNop())
	assert.Equal(t, "reports/2024/01/04/120000Z-run-1.json", e.Key(sampleReport()))
}

func TestExporter_Export(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())

	client.On("BucketExists", mock.Anything, "bucket").Return(true, nil)
	client.On("PutObject", mock.Anything, "bucket", "reports/2024/01/04/120000Z-run-1.json", mock.Anything, mock.AnythingOfType("int64"), mock.Anything).
		Run(func(args mock.Arguments) {
			body, err := io.ReadAll(args.Get(3).(io.Reader))
			require.NoError(t, err)
			assert.Equal(t, int64(len(body)), args.Get(4).(int64))
			assert.Contains(t, string(body), `"run_id": "run-1"`)
			assert.Equal(t, "application/json", args.Get(5).(minio.PutObjectOptions).ContentType)
		}).
		Return(minio.UploadInfo{}, nil)

	key, err := e.Export(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/01/04/120000Z-run-1.json", key)
	client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestExporter_Export_CreatesBucket(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())

	client.On("BucketExists", mock.Anything, "bucket").Return(false, nil)
	client.On("MakeBucket", mock.Anything, "bucket", mock.Anything).Return(nil)
	client.On("PutObject", mock.Anything, "bucket", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil)

	_, err := e.Export(context.Background(), sampleReport())
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestExporter_Export_Errors(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("BucketExists", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "bucket").Return(false, boom)

		_, err := NewExporter(client, "bucket", "reports", 0, zap.NewNop()).Export(context.Background(), sampleReport())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("PutObject", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "bucket").Return(true, nil)
		client.On("PutObject", mock.Anything, "bucket", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, boom)

		_, err := NewExporter(client, "bucket", "reports", 0, zap.NewNop()).Export(context.Background(), sampleReport())
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to upload reports/2024/01/04/120000Z-run-1.json")
	})
}

func TestExporter_List(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())

	client.On("ListObjects", mock.Anything, "bucket", minio.ListObjectsOptions{Prefix: "reports", Recursive: true}).
		Return(listing("reports/2024/01/05/b.json", "reports/README", "reports/2024/01/04/a.json"))

	keys, err := e.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/2024/01/04/a.json", "reports/2024/01/05/b.json"}, keys)
}

func TestExporter_Fetch(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteJSON(&buf))
	client.On("GetObject", mock.Anything, "bucket", "reports/2024/01/04/run-1.json", mock.Anything).
		Return(io.NopCloser(&buf), nil)

	r, err := e.Fetch(context.Background(), "reports/2024/01/04/run-1.json")
	require.NoError(t, err)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, window, r.Window)
	require.Len(t, r.Results, 2)
	assert.Equal(t, "reauth", r.Results[1].ErrorKind)
	assert.Len(t, r.Failed(), 1)
}

func TestExporter_Prune(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())

	client.On("ListObjects", mock.Anything, "bucket", mock.Anything).
		Return(listing("reports/2024/01/03/c.json", "reports/2024/01/01/a.json", "reports/2024/01/02/b.json"))

	var removed []string
	client.On("RemoveObjects", mock.Anything, "bucket", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			for obj := range args.Get(2).(<-chan minio.ObjectInfo) {
				removed = append(removed, obj.Key)
			}
		}).
		Return(nil)

	require.NoError(t, e.Prune(context.Background(), 1))
	assert.Equal(t, []string{"reports/2024/01/01/a.json", "reports/2024/01/02/b.json"}, removed)
}

func TestExporter_Prune_KeepsNewestOfSameDay(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())

	var keys []string
	for i := 0; i < 20; i++ {
		r := &Report{RunID: uuid.NewString(), StartedAt: now.Add(time.Duration(i) * time.Minute)}
		keys = append(keys, e.Key(r))
	}
	newest := keys[len(keys)-1]

	shuffled := append([]string(nil), keys...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	client.On("ListObjects", mock.Anything, "bucket", mock.Anything).Return(listing(shuffled...))

	var removed []string
	client.On("RemoveObjects", mock.Anything, "bucket", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			for obj := range args.Get(2).(<-chan minio.ObjectInfo) {
				removed = append(removed, obj.Key)
			}
		}).
		Return(nil)

	require.NoError(t, e.Prune(context.Background(), 1))
	assert.Equal(t, keys[:len(keys)-1], removed)
	assert.NotContains(t, removed, newest)
}

func TestExporter_Prune_NothingToDo(t *testing.T) {
	client := new(mocks.Client)
	e := NewExporter(client, "bucket", "reports", 0, zap.NewNop())
	client.On("ListObjects", mock.Anything, "bucket", mock.Anything).Return(listing("reports/a.json"))

	require.NoError(t, e.Prune(context.Background(), 5))
	client.AssertNotCalled(t, "RemoveObjects", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
