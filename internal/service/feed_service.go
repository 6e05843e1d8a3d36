package service

import (
	"context"

	"squadfeed/internal/feed"
	"squadfeed/internal/models"
	"squadfeed/internal/observability"
	"squadfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultPageSize applies when the caller gives no positive page size.
const DefaultPageSize = 1

// FetchPageInput selects one feed page. Order and Cursor are the raw client
// values. AuthorID and SquadID, when set, narrow the feed.
type FetchPageInput struct {
	Order    string
	Cursor   string
	PageSize int
	ViewerID uint
	AuthorID uint
	SquadID  uint
}

// FeedPage is one page of ranked posts. NextCursor resumes after the last
// post and is empty for an empty page.
type FeedPage struct {
	Posts      []models.FeedPost `json:"posts"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

type FeedService struct {
	posts repository.PostRepository
}

func NewFeedService(posts repository.PostRepository) *FeedService {
	return &FeedService{posts: posts}
}

// FetchPage returns the page of posts that follows in.Cursor in the requested order.
func (s *FeedService) FetchPage(ctx context.Context, in FetchPageInput) (page *FeedPage, err error) {
	ranking, err := feed.ParseRanking(in.Order)
	if err != nil {
		return nil, models.NewValidationError(feed.InvalidOrderMessage)
	}

	var after *feed.Cursor
	if in.Cursor != "" {
		c, err := feed.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, &models.AppError{Code: models.CodeValidation, Message: "Invalid cursor", Err: err}
		}
		after = &c
	}

	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	ctx, span := observability.StartSpan(ctx, "feed", "FetchPage",
		attribute.String("feed.order", ranking.Name()),
		attribute.Int("feed.page_size", pageSize),
		attribute.Bool("feed.has_cursor", after != nil),
	)
	defer span.End(&err)

	rows, err := s.posts.FeedPage(ctx, repository.FeedQuery{
		Ranking:  ranking,
		After:    after,
		Limit:    pageSize,
		ViewerID: in.ViewerID,
		AuthorID: in.AuthorID,
		SquadID:  in.SquadID,
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	page = &FeedPage{Posts: rows, HasMore: len(rows) == pageSize}
	if page.Posts == nil {
		page.Posts = []models.FeedPost{}
	}
	if n := len(rows); n > 0 {
		last := rows[n-1]
		page.NextCursor = ranking.CursorFor(metricOf(ranking, last), last.ID)
	}

	observability.FeedPagesServed.WithLabelValues(ranking.Name()).Inc()
	span.AddAttributes(attribute.Int("feed.rows", len(rows)))
	return page, nil
}

func metricOf(r feed.Ranking, p models.FeedPost) int64 {
	switch r {
	case feed.ByUpvotes:
		return p.Upvotes
	case feed.ByViews:
		return p.Views
	default:
		return int64(p.ID)
	}
}
