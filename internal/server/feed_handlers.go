package server

import (
	"squadfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts returns one keyset page of the feed.
// Query: sortingOrder (id|upvotes|views), cursor, pageSize.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	return s.feedPage(c, service.FetchPageInput{})
}

// GetUserPosts returns one keyset page of posts written by the user in ":id".
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return nil
	}
	return s.feedPage(c, service.FetchPageInput{AuthorID: id})
}

// GetSquadPosts returns one keyset page of posts published in the squad in ":id".
func (s *Server) GetSquadPosts(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return nil
	}
	return s.feedPage(c, service.FetchPageInput{SquadID: id})
}

func (s *Server) feedPage(c *fiber.Ctx, in service.FetchPageInput) error {
	pageSize := c.QueryInt("pageSize", service.DefaultPageSize)
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	in.Order = c.Query("sortingOrder")
	in.Cursor = c.Query("cursor")
	in.PageSize = pageSize
	in.ViewerID = userID(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := s.feedService.FetchPage(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
