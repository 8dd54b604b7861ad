package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

const SubjectPostSubmitted = "feed.post.submitted"

type NatsPublisher struct {
	nc  *nats.Conn
	now func() time.Time
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc, now: time.Now}
}

var _ ports.EventPublisher = (*NatsPublisher)(nil)

// Structure de l'event (le Posts Service reste la source de vérité)
type PostSubmittedEvent struct {
	Caption     string    `json:"caption"`
	ImageName   string    `json:"image_name"`
	ImageSize   int       `json:"image_size"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (p *NatsPublisher) PublishPostSubmitted(ctx context.Context, post domain.NewPost) error {
	msg, err := p.message(ctx, post)
	if err != nil {
		return err
	}

	slog.Info("📢 Publishing event with trace context", "topic", msg.Subject, "image", msg.Header.Get("Image-Name"))

	return p.nc.PublishMsg(msg)
}

func (p *NatsPublisher) message(ctx context.Context, post domain.NewPost) (*nats.Msg, error) {
	event := PostSubmittedEvent{
		Caption:     post.Caption,
		SubmittedAt: p.now().UTC(),
	}
	if post.Image != nil {
		event.ImageName = post.Image.Filename
		event.ImageSize = post.Image.Size()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: SubjectPostSubmitted,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Image-Name", event.ImageName)
	// Trace ID de la requête HTTP propagé dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	return msg, nil
}

// NoopPublisher est utilisé quand NATS_URL est vide.
type NoopPublisher struct{}

func (NoopPublisher) PublishPostSubmitted(context.Context, domain.NewPost) error { return nil }

var _ ports.EventPublisher = NoopPublisher{}
