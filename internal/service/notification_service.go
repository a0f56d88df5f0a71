package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/observability"
)

// ErrEmptyNotification indicates the message was blank after sanitization.
var ErrEmptyNotification = errors.New("notification message empty after sanitization")

// NotificationService emits user-facing notifications and streams them to
// connected clients and peer instances.
type NotificationService interface {
	Notify(ctx context.Context, level models.NotificationLevel, message string) (models.Notification, error)
	Subscribe() (<-chan models.Notification, func())
	Start(ctx context.Context)
}

type notificationService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	sanitizer   *bluemonday.Policy
	broker      *broker[models.Notification]
	sequence    atomic.Uint64
	nodeID      string
	now         func() time.Time
}

type notificationEvent struct {
	Source       string              `json:"source"`
	Notification models.Notification `json:"notification"`
	SentAt       time.Time           `json:"sent_at"`
}

// NewNotificationService constructs a notification service. redisClient and
// natsConn are optional peer transports.
func NewNotificationService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = strings.ReplaceAll(channelBase, ".", ":")
		subject = strings.ReplaceAll(channelBase, ":", ".")
	}

	return &notificationService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		sanitizer:   bluemonday.StrictPolicy(),
		broker:      newBroker[models.Notification](),
		nodeID:      uuid.NewString(),
		now:         time.Now,
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Notify(ctx context.Context, level models.NotificationLevel, message string) (models.Notification, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if clean == "" {
		return models.Notification{}, ErrEmptyNotification
	}

	switch level {
	case models.NotificationInfo, models.NotificationSuccess, models.NotificationError:
	default:
		level = models.NotificationInfo
	}

	notification := models.Notification{
		ID:        s.sequence.Add(1),
		Level:     level,
		Message:   clean,
		CreatedAt: s.now().UTC(),
	}

	s.broker.broadcast(notification)
	if err := s.publish(ctx, notification); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to peers")
	}

	observability.Notifications().WithLabelValues(string(level)).Inc()
	s.logger.Debug().Uint64("notification_id", notification.ID).Str("level", string(level)).Msg(clean)

	return notification, nil
}

func (s *notificationService) Subscribe() (<-chan models.Notification, func()) {
	return s.broker.subscribe()
}

func (s *notificationService) publish(ctx context.Context, notification models.Notification) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       s.now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	notification := event.Notification
	if notification.Level == "" {
		notification.Level = models.NotificationInfo
	}

	observability.Notifications().WithLabelValues(string(notification.Level)).Inc()
	s.broker.broadcast(notification)
}
