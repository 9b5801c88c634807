package downloads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

func seed(t *testing.T, store *storage.MemoryBackend, id, url string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.CreateTask(context.Background(), &models.DownloadTask{
		ID: id, URL: url, Platform: "stock", Status: models.TaskPending,
		CreatedAt: now, UpdatedAt: now, UserID: "u1",
	}))
}

func mediaServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/photos/cat.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
	})
	mux.HandleFunc("/asset", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="vector.eps"`)
		w.Write([]byte("abc"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/photos/cat.jpg", http.StatusFound)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	return httptest.NewServer(mux)
}

func TestProcessOnceCompletes(t *testing.T) {
	srv := mediaServer()
	defer srv.Close()
	store := storage.NewMemoryBackend()
	seed(t, store, "t1", srv.URL+"/photos/cat.jpg")
	seed(t, store, "t2", srv.URL+"/asset")
	seed(t, store, "t3", srv.URL+"/moved")

	p := NewProcessor(store, srv.Client(), Config{})
	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t1, _ := store.GetTask(context.Background(), "t1")
	assert.Equal(t, models.TaskCompleted, t1.Status)
	assert.Equal(t, "cat.jpg", t1.Filename)
	assert.EqualValues(t, 1024, t1.FileSize)
	assert.Equal(t, 100, t1.Progress)
	assert.Equal(t, srv.URL+"/photos/cat.jpg", t1.DownloadURL)

	t2, _ := store.GetTask(context.Background(), "t2")
	assert.Equal(t, "vector.eps", t2.Filename)

	t3, _ := store.GetTask(context.Background(), "t3")
	assert.Equal(t, srv.URL+"/photos/cat.jpg", t3.DownloadURL)
}

func TestProcessOnceFails(t *testing.T) {
	srv := mediaServer()
	defer srv.Close()
	store := storage.NewMemoryBackend()
	seed(t, store, "t1", srv.URL+"/gone")

	p := NewProcessor(store, srv.Client(), Config{})
	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)

	got, _ := store.GetTask(context.Background(), "t1")
	assert.Equal(t, models.TaskFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "410")
	assert.Empty(t, got.DownloadURL)
}

func TestProcessOnceSizeLimit(t *testing.T) {
	srv := mediaServer()
	defer srv.Close()
	store := storage.NewMemoryBackend()
	seed(t, store, "t1", srv.URL+"/photos/cat.jpg")

	p := NewProcessor(store, srv.Client(), Config{MaxBytes: 100})
	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)

	got, _ := store.GetTask(context.Background(), "t1")
	assert.Equal(t, models.TaskFailed, got.Status)
	assert.Equal(t, errTooLarge.Error(), got.ErrorMessage)
}

func TestProcessOnceSkipsSettledTasks(t *testing.T) {
	store := storage.NewMemoryBackend()
	now := time.Now()
	require.NoError(t, store.CreateTask(context.Background(), &models.DownloadTask{
		ID: "done", Status: models.TaskCompleted, CreatedAt: now, UpdatedAt: now,
	}))

	p := NewProcessor(store, nil, Config{})
	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := storage.NewMemoryBackend()
	p := NewProcessor(store, nil, Config{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "a.png", filename("", "/x/a.png"))
	assert.Equal(t, "download", filename("", "/"))
	assert.Equal(t, "b.zip", filename(`attachment; filename="../../b.zip"`, "/x"))
}
