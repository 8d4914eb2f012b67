package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/geometry"
	"github.com/kendall-kelly/fabmarket-api/jobs"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskName is the job task that analyzes an uploaded design
const TaskName = "analyze_design"

// Outcome is what a single Process call did to the design
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

var ErrDesignNotFound = errors.New("design not found")

const sourceMissingMessage = "S3 file not found."

// Worker downloads a design's CAD file, extracts its geometry and records
// the result on the design row.
type Worker struct {
	db         *gorm.DB
	storage    services.ObjectStorage
	extractor  *geometry.Extractor
	events     services.EventBus
	log        *logger.Logger
	retryDelay time.Duration
	tempDir    string
}

type Option func(*Worker)

// WithRetryDelay sets the backoff requested for transient storage failures
func WithRetryDelay(d time.Duration) Option {
	return func(w *Worker) { w.retryDelay = d }
}

// WithTempDir sets where downloads are staged; empty means os.TempDir
func WithTempDir(dir string) Option {
	return func(w *Worker) { w.tempDir = dir }
}

func WithEventBus(bus services.EventBus) Option {
	return func(w *Worker) { w.events = bus }
}

func NewWorker(db *gorm.DB, storage services.ObjectStorage, extractor *geometry.Extractor, baseLog *logger.Logger, opts ...Option) *Worker {
	w := &Worker{
		db:         db,
		storage:    storage,
		extractor:  extractor,
		events:     services.NoopEventBus{},
		log:        baseLog.With("component", "AnalysisWorker"),
		retryDelay: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) TaskName() string {
	return TaskName
}

// Run adapts Process to the job pool. Recorded analysis failures complete the
// job; only transient storage errors come back as retryable.
func (w *Worker) Run(ctx context.Context, job *models.AnalysisJob) error {
	_, err := w.Process(ctx, job.DesignID)
	return err
}

// Process analyzes one design end to end. The returned error is non-nil only
// when the job itself could not finish; analysis failures are recorded on the
// design and reported as OutcomeFailed.
func (w *Worker) Process(ctx context.Context, designID uuid.UUID) (Outcome, error) {
	ctx, span := otel.Tracer("fabmarket-api/analysis").Start(ctx, "analysis.Process")
	defer span.End()
	span.SetAttributes(attribute.String("design.id", designID.String()))

	log := w.log.With("design_id", designID)

	var design models.Design
	if err := w.db.WithContext(ctx).First(&design, "id = ?", designID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Design not found for analysis")
			return OutcomeSkipped, fmt.Errorf("%w: %s", ErrDesignNotFound, designID)
		}
		return "", jobs.Retryable(fmt.Errorf("failed to load design: %w", err), w.retryDelay)
	}
	if design.Status != models.DesignStatusPendingAnalysis {
		log.Info("Design is not awaiting analysis, skipping", "status", design.Status)
		return OutcomeSkipped, nil
	}

	metrics, extractErr, err := w.analyze(ctx, &design)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Transient failure fetching design file", "error", err)
		return "", jobs.Retryable(err, w.retryDelay)
	}

	status := models.DesignStatusAnalysisComplete
	var doc any = metrics
	if extractErr != nil {
		status = models.DesignStatusAnalysisFailed
		doc = extractErr.Payload()
		span.SetAttributes(attribute.String("analysis.error_kind", string(extractErr.Kind)))
	}

	applied, err := w.persistResult(ctx, designID, status, doc)
	if err != nil {
		return "", jobs.Retryable(err, w.retryDelay)
	}
	if !applied {
		log.Info("Design changed while analysis ran, result discarded")
		return OutcomeSkipped, nil
	}

	if extractErr != nil {
		log.Warn("Design analysis failed", "error_kind", extractErr.Kind, "error", extractErr.Message)
		w.publish(ctx, log, services.EventDesignAnalysisFailed, designID, status)
		return OutcomeFailed, nil
	}
	log.Info("Design analysis complete", "volume_cm3", metrics.VolumeCM3.String(), "triangles", metrics.NumTriangles)
	w.publish(ctx, log, services.EventDesignAnalysisComplete, designID, status)
	return OutcomeCompleted, nil
}

// analyze stages the file in a temp location and extracts metrics. The
// second return is a recordable analysis failure; the third is transient.
func (w *Worker) analyze(ctx context.Context, design *models.Design) (*geometry.Metrics, *geometry.Error, error) {
	tmp, err := os.CreateTemp(w.tempDir, "design-*"+geometry.NormalizeExtension(design.FileExtension))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if err := tmp.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := w.storage.DownloadToFile(ctx, design.FileKey, path); err != nil {
		if errors.Is(err, services.ErrObjectNotFound) {
			return nil, &geometry.Error{Kind: geometry.KindSourceFileMissing, Message: sourceMissingMessage}, nil
		}
		return nil, nil, fmt.Errorf("failed to download %s: %w", design.FileKey, err)
	}

	metrics, err := w.extractor.ExtractFile(path, design.FileExtension)
	if err != nil {
		return nil, geometry.AsError(err), nil
	}
	return metrics, nil, nil
}

// persistResult writes status and geometric data in one update, under a row
// lock, and only if the design is still awaiting analysis.
func (w *Worker) persistResult(ctx context.Context, designID uuid.UUID, status models.DesignStatus, doc any) (bool, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode geometric data: %w", err)
	}

	applied := false
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Design
		if err := config.ForUpdate(tx).Select("id", "status").First(&current, "id = ?", designID).Error; err != nil {
			return err
		}
		if current.Status != models.DesignStatusPendingAnalysis {
			return nil
		}
		res := tx.Model(&models.Design{}).
			Where("id = ? AND status = ?", designID, models.DesignStatusPendingAnalysis).
			Updates(map[string]interface{}{
				"status":         status,
				"geometric_data": datatypes.JSON(payload),
			})
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to persist analysis result: %w", err)
	}
	return applied, nil
}

func (w *Worker) publish(ctx context.Context, log *logger.Logger, eventType string, designID uuid.UUID, status models.DesignStatus) {
	if err := w.events.Publish(ctx, services.NewEvent(eventType, designID.String(), string(status))); err != nil {
		log.Warn("Failed to publish event", "event", eventType, "error", err)
	}
}
