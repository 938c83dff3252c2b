package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// CourseCompletedEvent is the message emitted when a draft is finalized
// into a published course. Downstream services (catalog indexing,
// notifications) consume it from the course events queue.
type CourseCompletedEvent struct {
	CourseID    string    `json:"course_id"`
	OwnerID     string    `json:"owner_id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}

// CourseEventPublisher defines the interface for publishing course lifecycle events.
type CourseEventPublisher interface {
	PublishCourseCompleted(ctx context.Context, event CourseCompletedEvent) error
}

// Compile-time check
var _ CourseEventPublisher = (*rabbitMQPublisher)(nil)

// rabbitMQPublisher implements CourseEventPublisher over a RabbitMQ channel.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQCourseEventPublisher opens a channel on conn and declares the
// course events queue. The queue parameters must match the consumer side.
func NewRabbitMQCourseEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (CourseEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("course event publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("course event publisher: failed to declare queue '%s': %w", queueName, err)
	}
	log := logger.Named("CourseEventPublisher")
	log.Info("Queue declared", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishCourseCompleted publishes a course.completed event.
func (p *rabbitMQPublisher) PublishCourseCompleted(ctx context.Context, event CourseCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal CourseCompletedEvent", zap.String("courseID", event.CourseID), zap.Error(err))
		return fmt.Errorf("failed to marshal course completed event for course %s: %w", event.CourseID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		p.logger.Error("Failed to publish CourseCompletedEvent", zap.String("courseID", event.CourseID), zap.Error(err))
		return fmt.Errorf("failed to publish course completed event for course %s: %w", event.CourseID, err)
	}
	p.logger.Info("CourseCompletedEvent published", zap.String("courseID", event.CourseID), zap.String("slug", event.Slug))
	return nil
}

// publishMessage publishes body to the queue with a bounded timeout and
// a few short retries against transient channel errors.
func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key (queue name)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "course-builder",
			},
		)
		if err == nil {
			break
		}
		p.logger.Warn("Publish attempt failed", zap.Int("attempt", attempt), zap.String("queue", p.queueName), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s after retries: %w", p.queueName, err)
	}
	return nil
}
