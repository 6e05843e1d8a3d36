package service

import (
	"context"
	"log/slog"

	"squadfeed/internal/featureflags"
	"squadfeed/internal/middleware"
	"squadfeed/internal/models"
	"squadfeed/internal/notifications"
	"squadfeed/internal/observability"
	"squadfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ToggleOutcome is the ledger change made by an upvote toggle.
type ToggleOutcome string

const (
	UpvoteAdded   ToggleOutcome = "added"
	UpvoteRemoved ToggleOutcome = "removed"
)

// ToggleResult carries the outcome and the post's upvote count after it.
type ToggleResult struct {
	Outcome ToggleOutcome `json:"state"`
	Upvotes int64         `json:"upvotes"`
}

// ViewOutcome reports whether a view changed the post's view count.
type ViewOutcome string

const (
	ViewCounted        ViewOutcome = "counted"
	ViewAlreadyCounted ViewOutcome = "already_counted"
)

// EventPublisher receives engagement events after they commit.
type EventPublisher interface {
	PublishEngagement(ctx context.Context, ev notifications.EngagementEvent) error
}

type EngagementService struct {
	repo      repository.EngagementRepository
	publisher EventPublisher
	flags     *featureflags.Manager
}

// NewEngagementService wires the engagement use cases. publisher may be nil.
func NewEngagementService(repo repository.EngagementRepository, publisher EventPublisher, flags *featureflags.Manager) *EngagementService {
	return &EngagementService{repo: repo, publisher: publisher, flags: flags}
}

// ToggleUpvote flips the actor's upvote on a post.
func (s *EngagementService) ToggleUpvote(ctx context.Context, actorID, postID uint) (res *ToggleResult, err error) {
	if actorID == 0 {
		return nil, models.NewMissingParameterError("userId")
	}
	if postID == 0 {
		return nil, models.NewMissingParameterError("postId")
	}

	ctx, span := observability.StartSpan(ctx, "engagement", "ToggleUpvote",
		attribute.Int64("post.id", int64(postID)))
	defer span.End(&err)

	toggle, err := s.repo.ToggleUpvote(ctx, actorID, postID)
	if err != nil {
		observability.EngagementEvents.WithLabelValues("upvote", "error").Inc()
		return nil, storageError(err, "Post", postID)
	}

	res = &ToggleResult{Outcome: UpvoteRemoved, Upvotes: toggle.Upvotes}
	event := notifications.EventUpvoteRemoved
	if toggle.Added {
		res.Outcome = UpvoteAdded
		event = notifications.EventUpvoteAdded
	}
	observability.EngagementEvents.WithLabelValues("upvote", string(res.Outcome)).Inc()
	span.AddAttributes(attribute.String("engagement.outcome", string(res.Outcome)))

	upvotes := res.Upvotes
	s.publish(ctx, notifications.EngagementEvent{
		Type:    event,
		ActorID: actorID,
		PostID:  postID,
		Upvotes: &upvotes,
	})
	return res, nil
}

// RegisterView counts the actor's first view of a post; later views are no-ops.
func (s *EngagementService) RegisterView(ctx context.Context, actorID, postID uint) (outcome ViewOutcome, err error) {
	if actorID == 0 {
		return "", models.NewMissingParameterError("userId")
	}
	if postID == 0 {
		return "", models.NewMissingParameterError("postId")
	}

	ctx, span := observability.StartSpan(ctx, "engagement", "RegisterView",
		attribute.Int64("post.id", int64(postID)))
	defer span.End(&err)

	counted, err := s.repo.RegisterView(ctx, actorID, postID)
	if err != nil {
		observability.EngagementEvents.WithLabelValues("view", "error").Inc()
		return "", storageError(err, "Post", postID)
	}
	if !counted {
		observability.EngagementEvents.WithLabelValues("view", string(ViewAlreadyCounted)).Inc()
		return ViewAlreadyCounted, nil
	}

	observability.EngagementEvents.WithLabelValues("view", string(ViewCounted)).Inc()
	s.publish(ctx, notifications.EngagementEvent{
		Type:    notifications.EventPostViewed,
		ActorID: actorID,
		PostID:  postID,
	})
	return ViewCounted, nil
}

// publish is best effort: the engagement is already committed.
func (s *EngagementService) publish(ctx context.Context, ev notifications.EngagementEvent) {
	if s.publisher == nil || !s.flags.Enabled(featureflags.EngagementEvents, ev.ActorID) {
		return
	}
	if err := s.publisher.PublishEngagement(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish engagement event",
			slog.String("type", ev.Type),
			slog.Uint64("post_id", uint64(ev.PostID)),
			slog.String("error", err.Error()))
	}
}
