package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"flipbook/internal/config"
	"flipbook/internal/model"
	"flipbook/internal/repository"
	repoMocks "flipbook/internal/repository/mocks"
	storeMocks "flipbook/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingProcessor captures the jobs it was asked to run.
type recordingProcessor struct {
	mu   sync.Mutex
	runs []string
	done chan struct{}
}

func newRecordingProcessor(expected int) *recordingProcessor {
	return &recordingProcessor{done: make(chan struct{}, expected)}
}

func (p *recordingProcessor) Run(ctx context.Context, taskID, localFilePath, mimeType string) error {
	p.mu.Lock()
	p.runs = append(p.runs, taskID)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func (p *recordingProcessor) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d processed jobs", n)
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		Count:              2,
		QueueSize:          4,
		StaleTaskAge:       30 * time.Minute,
		StaleCheckInterval: time.Hour, // keep the monitor quiet during tests
	}
}

func TestRunner_ProcessesSubmittedJobs(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)
	proc := newRecordingProcessor(2)

	repo.On("FindInStatus", mock.Anything, model.StatusUploaded).Return([]model.Task{}, nil)

	r := NewRunner(testWorkerConfig(), proc, repo, store, testLogger())
	require.NoError(t, r.Start())
	defer r.Stop()

	require.NoError(t, r.Submit(Job{TaskID: "a", LocalPath: "/tmp/a.pdf", MIMEType: "application/pdf"}))
	require.NoError(t, r.Submit(Job{TaskID: "b", LocalPath: "/tmp/b.pdf", MIMEType: "application/pdf"}))

	proc.waitFor(t, 2)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, proc.runs)
}

func TestRunner_SubmitFailsWhenQueueFull(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)

	cfg := testWorkerConfig()
	cfg.QueueSize = 1

	// Runner not started: nothing drains the queue.
	r := NewRunner(cfg, newRecordingProcessor(0), repo, store, testLogger())

	assert.NoError(t, r.Submit(Job{TaskID: "a"}))
	assert.Error(t, r.Submit(Job{TaskID: "b"}))
}

func TestRunner_RecoversUploadedTasks(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)
	proc := newRecordingProcessor(1)

	repo.On("FindInStatus", mock.Anything, model.StatusUploaded).Return([]model.Task{
		{
			ID:           "lost-1",
			OriginalName: "report.pdf",
			FileKey:      "uploads/lost-1/report.pdf",
			FileType:     "application/pdf",
			Status:       model.StatusUploaded,
		},
	}, nil)
	store.On("Download", mock.Anything, "uploads/lost-1/report.pdf", mock.Anything).Return(nil)

	r := NewRunner(testWorkerConfig(), proc, repo, store, testLogger())
	require.NoError(t, r.Start())
	defer r.Stop()

	proc.waitFor(t, 1)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"lost-1"}, proc.runs)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRunner_StopDrainsQueuedJobs(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)
	proc := newRecordingProcessor(3)

	repo.On("FindInStatus", mock.Anything, model.StatusUploaded).Return([]model.Task{}, nil)

	cfg := testWorkerConfig()
	cfg.Count = 1

	r := NewRunner(cfg, proc, repo, store, testLogger())
	require.NoError(t, r.Start())

	require.NoError(t, r.Submit(Job{TaskID: "a"}))
	require.NoError(t, r.Submit(Job{TaskID: "b"}))
	require.NoError(t, r.Submit(Job{TaskID: "c"}))

	r.Stop()

	// Everything accepted before Stop must have run by the time Stop returns.
	proc.mu.Lock()
	runs := append([]string(nil), proc.runs...)
	proc.mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, runs)

	// Stop is idempotent and later submissions are refused, not queued.
	r.Stop()
	assert.Error(t, r.Submit(Job{TaskID: "d"}))
}

func TestRunner_ReapsStaleTasks(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)

	stale := model.Task{ID: "stuck-1", Status: model.StatusProcessing, Progress: 50}
	repo.On("FindStaleProcessing", mock.Anything, 30*time.Minute).Return([]model.Task{stale}, nil)
	repo.On("UpdateStatus", mock.Anything, "stuck-1", model.StatusFailed, 50, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	r := NewRunner(testWorkerConfig(), newRecordingProcessor(0), repo, store, testLogger())
	r.reapStaleTasks()

	repo.AssertExpectations(t)
}

func TestRunner_ReapSkipsTerminalTasks(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)

	// A task that reached a terminal state by the time the stale query
	// returned must not be driven to failed.
	done := model.Task{ID: "done-1", Status: model.StatusCompleted, Progress: 100}
	repo.On("FindStaleProcessing", mock.Anything, 30*time.Minute).Return([]model.Task{done}, nil)

	r := NewRunner(testWorkerConfig(), newRecordingProcessor(0), repo, store, testLogger())
	r.reapStaleTasks()

	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_ReapToleratesLostRace(t *testing.T) {
	repo := new(repoMocks.MockTaskRepository)
	store := new(storeMocks.MockStorage)

	stale := model.Task{ID: "stuck-1", Status: model.StatusProcessing, Progress: 50}
	repo.On("FindStaleProcessing", mock.Anything, 30*time.Minute).Return([]model.Task{stale}, nil)
	// The task completed between the stale query and the update.
	repo.On("UpdateStatus", mock.Anything, "stuck-1", model.StatusFailed, 50, mock.Anything).
		Return(repository.ErrNoTransition)

	r := NewRunner(testWorkerConfig(), newRecordingProcessor(0), repo, store, testLogger())
	r.reapStaleTasks()

	repo.AssertExpectations(t)
}
