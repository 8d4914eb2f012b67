package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/geometry"
	"github.com/kendall-kelly/fabmarket-api/jobs"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/services"
	"github.com/kendall-kelly/fabmarket-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const stepFixture = `ISO-10303-21;
HEADER;
FILE_DESCRIPTION(('bracket'),'2;1');
FILE_SCHEMA(('AUTOMOTIVE_DESIGN'));
ENDSEC;
DATA;
#1=CARTESIAN_POINT('',(0.,0.,0.));
#2=DIRECTION('',(0.,0.,1.));
ENDSEC;
END-ISO-10303-21;
`

// cubeSTL renders an ASCII STL cube with edge length s millimetres
func cubeSTL(s float64) []byte {
	v := [][3][3]float64{
		{{0, 0, 0}, {0, s, 0}, {s, s, 0}}, {{0, 0, 0}, {s, s, 0}, {s, 0, 0}},
		{{0, 0, s}, {s, 0, s}, {s, s, s}}, {{0, 0, s}, {s, s, s}, {0, s, s}},
		{{0, 0, 0}, {0, 0, s}, {0, s, s}}, {{0, 0, 0}, {0, s, s}, {0, s, 0}},
		{{s, 0, 0}, {s, s, 0}, {s, s, s}}, {{s, 0, 0}, {s, s, s}, {s, 0, s}},
		{{0, 0, 0}, {s, 0, 0}, {s, 0, s}}, {{0, 0, 0}, {s, 0, s}, {0, 0, s}},
		{{0, s, 0}, {0, s, s}, {s, s, s}}, {{0, s, 0}, {s, s, s}, {s, s, 0}},
	}
	var b strings.Builder
	b.WriteString("solid cube\n")
	for _, tri := range v {
		b.WriteString("facet normal 0 0 0\nouter loop\n")
		for _, p := range tri {
			fmt.Fprintf(&b, "vertex %g %g %g\n", p[0], p[1], p[2])
		}
		b.WriteString("endloop\nendfacet\n")
	}
	b.WriteString("endsolid cube\n")
	return []byte(b.String())
}

type workerFixture struct {
	db      *gorm.DB
	storage *services.MockS3Service
	events  *services.MemoryEventBus
	tempDir string
	worker  *Worker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		db:      testutil.OpenTestDB(t),
		storage: services.NewMockS3Service(),
		events:  &services.MemoryEventBus{},
		tempDir: t.TempDir(),
	}
	f.worker = NewWorker(f.db, f.storage, geometry.NewExtractor(), logger.Nop(),
		WithEventBus(f.events),
		WithTempDir(f.tempDir),
		WithRetryDelay(time.Second),
	)
	return f
}

func (f *workerFixture) createDesign(t *testing.T, ext string, content []byte) *models.Design {
	t.Helper()
	customer := testutil.CreateUser(t, f.db, "auth0|"+uuid.NewString(), models.RoleCustomer)
	design := &models.Design{
		CustomerID:    customer.ID,
		DesignName:    "bracket",
		FileKey:       "designs/" + uuid.NewString() + ext,
		FileExtension: ext,
		Quantity:      1,
		Status:        models.DesignStatusPendingAnalysis,
	}
	require.NoError(t, f.db.Create(design).Error)
	if content != nil {
		f.storage.PutObject(design.FileKey, content)
	}
	return design
}

func (f *workerFixture) reload(t *testing.T, id uuid.UUID) (*models.Design, map[string]any) {
	t.Helper()
	var d models.Design
	require.NoError(t, f.db.First(&d, "id = ?", id).Error)
	var doc map[string]any
	if len(d.GeometricData) > 0 {
		require.NoError(t, json.Unmarshal(d.GeometricData, &doc))
	}
	return &d, doc
}

func (f *workerFixture) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged downloads must be removed")
}

func TestProcessSTLSuccess(t *testing.T) {
	f := newWorkerFixture(t)
	design := f.createDesign(t, ".stl", cubeSTL(10))

	outcome, err := f.worker.Process(context.Background(), design.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	stored, _ := f.reload(t, design.ID)
	assert.Equal(t, models.DesignStatusAnalysisComplete, stored.Status)
	metrics, ok := geometry.DecodeMetrics(stored.GeometricData)
	require.True(t, ok)
	assert.True(t, metrics.VolumeCM3.Equal(decimal.NewFromInt(1)), "volume %s", metrics.VolumeCM3)
	assert.Equal(t, 12, metrics.NumTriangles)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, services.EventDesignAnalysisComplete, events[0].Type)
	assert.Equal(t, design.ID.String(), events[0].SubjectID)
	f.assertTempDirEmpty(t)
}

func TestProcessRecordsAnalysisFailures(t *testing.T) {
	tests := []struct {
		name      string
		ext       string
		content   []byte
		wantKind  geometry.Kind
		wantError string
		checkDoc  func(t *testing.T, doc map[string]any)
	}{
		{
			name:      "source file missing",
			ext:       ".stl",
			wantKind:  geometry.KindSourceFileMissing,
			wantError: "S3 file not found.",
		},
		{
			name:      "corrupt stl",
			ext:       ".stl",
			content:   []byte("garbage bytes that are not a mesh"),
			wantKind:  geometry.KindCorruptFile,
			wantError: "STL file is truncated or malformed.",
		},
		{
			name:      "unsupported extension",
			ext:       ".obj",
			content:   []byte("v 0 0 0"),
			wantKind:  geometry.KindUnsupportedFormat,
			wantError: "Unsupported file type: .obj.",
		},
		{
			name:      "iges has no analyzer",
			ext:       ".igs",
			content:   []byte("S      1\n"),
			wantKind:  geometry.KindLibraryUnavailable,
			wantError: "IGES file analysis is not supported (no library).",
		},
		{
			name:      "step validated without geometry",
			ext:       ".step",
			content:   []byte(stepFixture),
			wantKind:  geometry.KindIncompleteGeometry,
			wantError: "STEP file validated, but detailed geometric properties could not be extracted.",
			checkDoc: func(t *testing.T, doc map[string]any) {
				assert.Equal(t, "iso10303-21-structural", doc["validation_engine"])
				assert.Equal(t, float64(2), doc["entity_count"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkerFixture(t)
			design := f.createDesign(t, tt.ext, tt.content)

			outcome, err := f.worker.Process(context.Background(), design.ID)
			require.NoError(t, err, "analysis failures are recorded, not retried")
			assert.Equal(t, OutcomeFailed, outcome)

			stored, doc := f.reload(t, design.ID)
			assert.Equal(t, models.DesignStatusAnalysisFailed, stored.Status)
			assert.Equal(t, tt.wantError, doc["error"])
			assert.Equal(t, string(tt.wantKind), doc["error_kind"])
			if tt.checkDoc != nil {
				tt.checkDoc(t, doc)
			}

			events := f.events.Events()
			require.Len(t, events, 1)
			assert.Equal(t, services.EventDesignAnalysisFailed, events[0].Type)
			f.assertTempDirEmpty(t)
		})
	}
}

func TestProcessTransientStorageErrorIsRetryable(t *testing.T) {
	f := newWorkerFixture(t)
	design := f.createDesign(t, ".stl", cubeSTL(10))
	f.storage.FailNextDownloads(1, errors.New("connection reset by peer"))

	_, err := f.worker.Process(context.Background(), design.ID)
	retry, ok := jobs.AsRetryable(err)
	require.True(t, ok, "expected a retryable error, got %v", err)
	assert.Equal(t, time.Second, retry.Delay)

	stored, _ := f.reload(t, design.ID)
	assert.Equal(t, models.DesignStatusPendingAnalysis, stored.Status)
	assert.Empty(t, stored.GeometricData)
	assert.Empty(t, f.events.Events())
	f.assertTempDirEmpty(t)

	outcome, err := f.worker.Process(context.Background(), design.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestProcessSkipsDesignNotAwaitingAnalysis(t *testing.T) {
	f := newWorkerFixture(t)
	design := f.createDesign(t, ".stl", cubeSTL(10))
	require.NoError(t, f.db.Model(design).Update("status", models.DesignStatusQuoted).Error)

	outcome, err := f.worker.Process(context.Background(), design.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, f.storage.DownloadCalls())
	assert.Empty(t, f.events.Events())
}

func TestProcessUnknownDesign(t *testing.T) {
	f := newWorkerFixture(t)

	outcome, err := f.worker.Process(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDesignNotFound)
	assert.Equal(t, OutcomeSkipped, outcome)
	_, retryable := jobs.AsRetryable(err)
	assert.False(t, retryable)
}

func TestConcurrentProcessWritesOnce(t *testing.T) {
	f := newWorkerFixture(t)
	design := f.createDesign(t, ".stl", cubeSTL(10))

	const runs = 4
	outcomes := make([]Outcome, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.worker.Process(context.Background(), design.ID)
		}(i)
	}
	wg.Wait()

	completed := 0
	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeCompleted {
			completed++
		} else {
			assert.Equal(t, OutcomeSkipped, outcomes[i])
		}
	}
	assert.Equal(t, 1, completed)
	assert.Len(t, f.events.Events(), 1)
}

func TestWorkerThroughJobPool(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	queue := jobs.NewQueue(f.db)
	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register(f.worker))
	pool := jobs.NewPool(queue, registry, logger.Nop(), jobs.PoolConfig{Workers: 1, RetryDelay: time.Second})

	missing := f.createDesign(t, ".stl", nil)
	job, err := queue.Enqueue(ctx, TaskName, missing.ID)
	require.NoError(t, err)

	ran, err := pool.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	stored, err := queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, stored.Status)
	assert.Equal(t, 1, stored.Attempts, "a missing source file is never retried")

	ran, err = pool.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, f.storage.DownloadCalls())
}
