package server

import (
	"squadfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpvotePost toggles the caller's upvote on a post.
func (s *Server) UpvotePost(c *fiber.Ctx) error {
	postID, err := parseID(c)
	if err != nil {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := s.engagementService.ToggleUpvote(ctx, userID(c), postID)
	if err != nil {
		return respondError(c, err)
	}

	message := "Post upvoted successfully."
	if res.Outcome == service.UpvoteRemoved {
		message = "Upvote removed."
	}
	return c.JSON(fiber.Map{
		"message": message,
		"state":   res.Outcome,
		"upvotes": res.Upvotes,
	})
}

// ViewPost registers the caller's first view of a post. Repeat views answer 204.
func (s *Server) ViewPost(c *fiber.Ctx) error {
	postID, err := parseID(c)
	if err != nil {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	outcome, err := s.engagementService.RegisterView(ctx, userID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	if outcome == service.ViewAlreadyCounted {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(fiber.Map{"message": "Post viewed successfully."})
}

// TouchStreak records today's activity. 201 when the streak changed, 204 otherwise.
func (s *Server) TouchStreak(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := s.streakService.Touch(ctx, userID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !res.Changed() {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Streak updated successfully",
		"streak_length":  res.Streak.StreakLength,
		"longest_streak": res.Streak.LongestStreak,
	})
}

// GetMyStreak returns the caller's streak record.
func (s *Server) GetMyStreak(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	streak, err := s.streakService.Get(ctx, userID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(streak)
}
