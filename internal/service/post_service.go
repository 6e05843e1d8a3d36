package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"squadfeed/internal/featureflags"
	"squadfeed/internal/models"
	"squadfeed/internal/observability"
	"squadfeed/internal/repository"
	"squadfeed/internal/sanitize"
	"squadfeed/internal/tagging"

	"github.com/gosimple/slug"
)

const (
	maxTitleLen   = 300
	maxContentLen = 50000
)

// TagExtractor derives vocabulary tags from plain text.
type TagExtractor interface {
	Extract(text string) []string
}

type PostService struct {
	posts repository.PostRepository
	tags  TagExtractor
	flags *featureflags.Manager
}

type CreatePostInput struct {
	UserID  uint
	SquadID uint
	Title   string
	Content string
}

type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Title   string
	Content string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// NewPostService wires post publishing. A nil extractor uses the default vocabulary.
func NewPostService(posts repository.PostRepository, tags TagExtractor, flags *featureflags.Manager) *PostService {
	if tags == nil {
		tags = tagging.NewExtractor(nil)
	}
	return &PostService{posts: posts, tags: tags, flags: flags}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.FeedPost, error) {
	if in.UserID == 0 {
		return nil, models.NewMissingParameterError("userId")
	}
	if in.SquadID == 0 {
		return nil, models.NewMissingParameterError("squad")
	}
	title := strings.TrimSpace(in.Title)
	if err := validatePostFields(title, in.Content, true); err != nil {
		return nil, err
	}

	member, err := s.posts.IsSquadMember(ctx, in.SquadID, in.UserID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !member {
		return nil, models.NewForbiddenError("You are not a member of this squad.")
	}

	content := sanitize.StripHTML(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	post := &models.Post{
		Title:    title,
		Slug:     slug.Make(title),
		Content:  content,
		AuthorID: in.UserID,
		SquadID:  in.SquadID,
		Tags:     s.deriveTags(content, in.UserID),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.GetPost(ctx, post.ID, in.UserID)
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.FeedPost, error) {
	if id == 0 {
		return nil, models.NewMissingParameterError("postId")
	}
	post, err := s.posts.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, storageError(err, "Post", id)
	}
	return post, nil
}

// GetPostBySlug returns the newest post published under slug.
func (s *PostService) GetPostBySlug(ctx context.Context, postSlug string, viewerID uint) (*models.FeedPost, error) {
	if postSlug == "" {
		return nil, models.NewMissingParameterError("slug")
	}
	post, err := s.posts.GetBySlug(ctx, postSlug, viewerID)
	if err != nil {
		return nil, storageError(err, "Post", postSlug)
	}
	return post, nil
}

// UpdatePost edits title and/or content. Only the author may edit; new
// content is re-sanitized and re-tagged.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.FeedPost, error) {
	post, err := s.GetPost(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	title := strings.TrimSpace(in.Title)
	if err := validatePostFields(title, in.Content, false); err != nil {
		return nil, err
	}
	if title != "" {
		post.Title = title
	}
	if in.Content != "" {
		content := sanitize.StripHTML(in.Content)
		if content == "" {
			return nil, models.NewValidationError("Content is required")
		}
		post.Content = content
		post.Tags = s.deriveTags(content, in.UserID)
	}

	if err := s.posts.Update(ctx, &post.Post); err != nil {
		return nil, storageError(err, "Post", in.PostID)
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.GetPost(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.posts.Delete(ctx, in.PostID); err != nil {
		return storageError(err, "Post", in.PostID)
	}
	return nil
}

func (s *PostService) deriveTags(content string, userID uint) []string {
	if !s.flags.Enabled(featureflags.AutoTags, userID) {
		return []string{}
	}
	tags := s.tags.Extract(sanitize.PlainText(content))
	observability.TagsExtracted.Observe(float64(len(tags)))
	return tags
}

func validatePostFields(title, content string, required bool) error {
	if required && title == "" {
		return models.NewValidationError("Title is required")
	}
	if required && strings.TrimSpace(content) == "" {
		return models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 300 characters)")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	return nil
}
