package handler_test

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/akashmaurya09/intelligrade/internal/dto"
	"github.com/akashmaurya09/intelligrade/internal/models"
)

type feedMessage struct {
	Type  string               `json:"type"`
	Event *models.GradingEvent `json:"event"`
}

func startFiberServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return "ws://" + listener.Addr().String()
}

func feedURL(base, token, submissionID string) string {
	query := url.Values{}
	if token != "" {
		query.Set("access_token", token)
	}
	if submissionID != "" {
		query.Set("submission_id", submissionID)
	}
	return base + "/api/v1/grading/ws?" + query.Encode()
}

func createSubmission(t *testing.T, app *fiber.App, token, paperID, student string) string {
	t.Helper()
	resp := doRequest(t, app, multipartRequest(t, http.MethodPost, "/api/v1/submissions", map[string]string{
		"paper_id":     paperID,
		"student_name": student,
	}, "answer_sheet", testJPEG(t)), token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.SubmissionResponse]
	decodeResponse(t, resp, &body)
	return body.Data.ID
}

func readFeed(t *testing.T, conn *websocket.Conn) feedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var message feedMessage
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestGradingFeedRejectsMissingOrInvalidToken(t *testing.T) {
	app := setupApp(t)
	base := startFiberServer(t, app)
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	for _, token := range []string{"", "not-a-jwt"} {
		conn, resp, err := dialer.Dial(feedURL(base, token, ""), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.Nil(t, conn)
		require.NotNil(t, resp)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestGradingFeedRequiresUpgrade(t *testing.T) {
	app := setupApp(t)
	teacher := signup(t, app, "teacher@school.example", "teacher")

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/grading/ws", nil), teacher)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestGradingFeedStreamsFilteredEvents(t *testing.T) {
	app := setupApp(t)
	teacher := signup(t, app, "teacher@school.example", "teacher")
	paper := createPaper(t, app, teacher)
	watched := createSubmission(t, app, teacher, paper.ID, "Meera")
	other := createSubmission(t, app, teacher, paper.ID, "Dev")

	base := startFiberServer(t, app)
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(feedURL(base, teacher, watched), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.Equal(t, "subscribed", readFeed(t, conn).Type)

	for _, id := range []string{other, watched} {
		resp := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/submissions/"+id+"/grade?wait=true", nil), teacher)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	var statuses []models.GradingStatus
	for len(statuses) < 2 {
		message := readFeed(t, conn)
		require.Equal(t, "grading_status", message.Type)
		require.NotNil(t, message.Event)
		require.Equal(t, watched, message.Event.SubmissionID, "events for %s must be filtered out", other)
		statuses = append(statuses, message.Event.Status)
	}
	require.Equal(t, []models.GradingStatus{models.GradingStatusGrading, models.GradingStatusSuccess}, statuses)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}
