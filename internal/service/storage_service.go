package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/repository"
)

// Compressor shrinks attachments before they are stored.
type Compressor interface {
	Compress(attachment models.Attachment) models.Attachment
}

// AttachmentMirror copies stored attachments to remote storage.
type AttachmentMirror interface {
	Upload(ctx context.Context, collection models.Collection, id string, attachment models.Attachment) (string, error)
	Remove(ctx context.Context, collection models.Collection, id string) error
}

// StorageService converts between in-memory papers and submissions and the
// records held by the attachment store.
type StorageService interface {
	SaveQuestionPaper(ctx context.Context, paper models.QuestionPaper) error
	SaveSubmission(ctx context.Context, submission models.StudentSubmission) error
	GetAllQuestionPapers(ctx context.Context) ([]models.QuestionPaper, error)
	GetAllSubmissions(ctx context.Context) ([]models.StudentSubmission, error)
	DeleteQuestionPaper(ctx context.Context, id string) error
}

type storageService struct {
	store      repository.AttachmentStore
	compressor Compressor
	mirror     AttachmentMirror
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewStorageService builds the data access facade. mirror may be nil.
func NewStorageService(store repository.AttachmentStore, compressor Compressor, mirror AttachmentMirror, logger zerolog.Logger) StorageService {
	return &storageService{
		store:      store,
		compressor: compressor,
		mirror:     mirror,
		tracer:     otel.Tracer("github.com/akashmaurya09/intelligrade/internal/service/storage"),
		logger:     logger.With().Str("component", "storage_service").Logger(),
	}
}

func (s *storageService) SaveQuestionPaper(ctx context.Context, paper models.QuestionPaper) (err error) {
	ctx, span := s.startSpan(ctx, "storage.save_paper", paper.ID)
	defer endSpan(span, &err)

	attachment := s.prepare(paper.ModelAnswer)
	if remote := s.mirrorFresh(ctx, models.CollectionPapers, paper.ID, attachment); remote != "" {
		paper.RemoteURL = remote
	}

	if err := s.store.Put(ctx, models.CollectionPapers, paper.ID, models.NewPaperMetadata(paper), attachment); err != nil {
		return fmt.Errorf("save question paper %s: %w", paper.ID, err)
	}

	s.logger.Debug().Str("paper_id", paper.ID).Int("bytes", attachment.Size()).Msg("question paper saved")
	return nil
}

func (s *storageService) SaveSubmission(ctx context.Context, submission models.StudentSubmission) (err error) {
	ctx, span := s.startSpan(ctx, "storage.save_submission", submission.ID)
	defer endSpan(span, &err)

	attachment := s.prepare(submission.AnswerSheet)
	if remote := s.mirrorFresh(ctx, models.CollectionSubmissions, submission.ID, attachment); remote != "" {
		submission.RemoteURL = remote
	}

	if err := s.store.Put(ctx, models.CollectionSubmissions, submission.ID, models.NewSubmissionMetadata(submission), attachment); err != nil {
		return fmt.Errorf("save submission %s: %w", submission.ID, err)
	}

	s.logger.Debug().Str("submission_id", submission.ID).Int("bytes", attachment.Size()).Msg("submission saved")
	return nil
}

func (s *storageService) GetAllQuestionPapers(ctx context.Context) (_ []models.QuestionPaper, err error) {
	ctx, span := s.startSpan(ctx, "storage.get_papers", "")
	defer endSpan(span, &err)

	records, err := s.store.GetAll(ctx, models.CollectionPapers)
	if err != nil {
		return nil, fmt.Errorf("load question papers: %w", err)
	}

	papers := make([]models.QuestionPaper, 0, len(records))
	for _, record := range records {
		var meta models.PaperMetadata
		if err := json.Unmarshal(record.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("decode question paper %s: %w", record.ID, err)
		}
		paper := meta.Paper()
		paper.ID = record.ID
		paper.ModelAnswer = record.Attachment
		paper.PreviewURL = record.PreviewURL
		papers = append(papers, paper)
	}

	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].CreatedAt.After(papers[j].CreatedAt)
	})

	span.SetAttributes(attribute.Int("count", len(papers)))
	return papers, nil
}

func (s *storageService) GetAllSubmissions(ctx context.Context) (_ []models.StudentSubmission, err error) {
	ctx, span := s.startSpan(ctx, "storage.get_submissions", "")
	defer endSpan(span, &err)

	records, err := s.store.GetAll(ctx, models.CollectionSubmissions)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}

	submissions := make([]models.StudentSubmission, 0, len(records))
	for _, record := range records {
		var meta models.SubmissionMetadata
		if err := json.Unmarshal(record.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", record.ID, err)
		}
		submission := meta.Submission()
		submission.ID = record.ID
		submission.AnswerSheet = record.Attachment
		submission.PreviewURL = record.PreviewURL
		submissions = append(submissions, submission)
	}

	sort.SliceStable(submissions, func(i, j int) bool {
		return submissions[i].SubmissionDate.After(submissions[j].SubmissionDate)
	})

	span.SetAttributes(attribute.Int("count", len(submissions)))
	return submissions, nil
}

// DeleteQuestionPaper removes the paper permanently. Submissions that
// reference it are left in place.
func (s *storageService) DeleteQuestionPaper(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "storage.delete_paper", id)
	defer endSpan(span, &err)

	if err := s.store.Delete(ctx, models.CollectionPapers, id); err != nil {
		return fmt.Errorf("delete question paper %s: %w", id, err)
	}

	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, models.CollectionPapers, id); err != nil {
			s.logger.Warn().Err(err).Str("paper_id", id).Msg("failed to remove mirrored model answer")
		}
	}

	s.logger.Info().Str("paper_id", id).Msg("question paper deleted")
	return nil
}

// prepare returns the attachment to hand to the store. Fresh uploads are
// compressed; stored binaries pass through untouched; nil stays nil so the
// store keeps whatever it already holds.
func (s *storageService) prepare(attachment *models.Attachment) *models.Attachment {
	if attachment == nil {
		return nil
	}
	if !attachment.Fresh || s.compressor == nil {
		return attachment
	}

	compressed := s.compressor.Compress(*attachment)
	s.logger.Debug().
		Str("media_type", compressed.MediaType).
		Int("original_bytes", len(attachment.Bytes)).
		Int("stored_bytes", len(compressed.Bytes)).
		Msg("attachment compressed")
	return &compressed
}

func (s *storageService) mirrorFresh(ctx context.Context, collection models.Collection, id string, attachment *models.Attachment) string {
	if s.mirror == nil || attachment == nil || !attachment.Fresh {
		return ""
	}

	url, err := s.mirror.Upload(ctx, collection, id, *attachment)
	if err != nil {
		s.logger.Warn().Err(err).Str("collection", string(collection)).Str("id", id).Msg("failed to mirror attachment")
		return ""
	}
	return url
}

func (s *storageService) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	if id == "" {
		return s.tracer.Start(ctx, name)
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("entity_id", id)))
}

func endSpan(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
