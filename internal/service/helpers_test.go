package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/preview"
	"github.com/akashmaurya09/intelligrade/internal/repository"
	"github.com/akashmaurya09/intelligrade/pkg/ai"
	"github.com/akashmaurya09/intelligrade/pkg/imaging"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.AttachmentRecord{}, &models.UserProfile{}))
	return db
}

type testStack struct {
	db        *gorm.DB
	previews  *preview.MemoryRegistry
	store     repository.AttachmentStore
	storage   StorageService
	notifier  *recordingNotifier
	workspace WorkspaceService
}

func newTestStack(t *testing.T, seeder Seeder) *testStack {
	t.Helper()

	db := setupTestDB(t)
	previews := preview.NewMemoryRegistry()
	store := repository.NewAttachmentStore(db, previews, "")
	storage := NewStorageService(store, imaging.NewCompressor(imaging.Options{}, testLogger()), nil, testLogger())
	notifier := &recordingNotifier{}
	workspace := NewWorkspaceService(storage, previews, seeder, notifier, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	return &testStack{
		db:        db,
		previews:  previews,
		store:     store,
		storage:   storage,
		notifier:  notifier,
		workspace: workspace,
	}
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y += 7 {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func samplePaper(t *testing.T) models.QuestionPaper {
	t.Helper()
	return models.QuestionPaper{
		ID:    "p1",
		Title: "Quiz",
		Rubric: []models.RubricItem{
			{ID: "q1", Question: "2+2=?", TotalMarks: 2},
			{ID: "q2", Question: "3*3=?", TotalMarks: 3},
		},
		ModelAnswer: models.NewUpload(testJPEG(t, 1500, 1000), "image/jpeg"),
	}
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, level models.NotificationLevel, message string) (models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	notification := models.Notification{ID: uint64(len(n.notifications) + 1), Level: level, Message: message}
	n.notifications = append(n.notifications, notification)
	return notification, nil
}

func (n *recordingNotifier) Subscribe() (<-chan models.Notification, func()) {
	ch := make(chan models.Notification)
	return ch, func() {}
}

func (n *recordingNotifier) Start(context.Context) {}

func (n *recordingNotifier) levels() []models.NotificationLevel {
	n.mu.Lock()
	defer n.mu.Unlock()
	levels := make([]models.NotificationLevel, 0, len(n.notifications))
	for _, notification := range n.notifications {
		levels = append(levels, notification.Level)
	}
	return levels
}

func (n *recordingNotifier) last() models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notifications) == 0 {
		return models.Notification{}
	}
	return n.notifications[len(n.notifications)-1]
}

type stubGrader struct {
	mu       sync.Mutex
	calls    int
	requests []ai.GradeRequest
	grade    func(ctx context.Context, req ai.GradeRequest) (ai.GradeResult, error)
	extract  func(ctx context.Context, image ai.Image) ([]ai.ExtractedQuestion, error)
}

func (g *stubGrader) GradeAnswerSheet(ctx context.Context, req ai.GradeRequest) (ai.GradeResult, error) {
	g.mu.Lock()
	g.calls++
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.grade != nil {
		return g.grade(ctx, req)
	}
	return ai.GradeResult{
		QuestionID:             req.Rubric.QuestionID,
		MarksAwarded:           req.Rubric.TotalMarks,
		Feedback:               "Correct",
		ImprovementSuggestions: []string{},
	}, nil
}

func (g *stubGrader) ExtractQuestions(ctx context.Context, image ai.Image) ([]ai.ExtractedQuestion, error) {
	if g.extract != nil {
		return g.extract(ctx, image)
	}
	return nil, nil
}

func (g *stubGrader) Name() string {
	return "stub"
}

func (g *stubGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type countingSeeder struct {
	mu      sync.Mutex
	storage StorageService
	runs    int
}

func (s *countingSeeder) Seed(ctx context.Context) error {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	return s.storage.SaveQuestionPaper(ctx, models.QuestionPaper{
		ID:     fmt.Sprintf("seed-%d", s.runs),
		Title:  "Seeded",
		Rubric: []models.RubricItem{{ID: "q1", Question: "Seeded question", TotalMarks: 1}},
	})
}
