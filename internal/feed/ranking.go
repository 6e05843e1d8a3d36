package feed

import (
	"errors"
	"fmt"
)

// ErrInvalidRankingOrder is returned by ParseRanking for unknown order names.
var ErrInvalidRankingOrder = errors.New("invalid ranking order")

// InvalidOrderMessage is the client-facing explanation for ErrInvalidRankingOrder.
const InvalidOrderMessage = "Invalid sorting order. Allowed values: 'id', '', 'upvotes', 'views'."

// Ranking is one feed order. It supplies the metric column, the ORDER BY
// clause and the keyset predicate so every order shares one query builder.
type Ranking struct {
	name       string
	column     string
	descending bool
}

var (
	// ById orders by post id ascending, oldest first.
	ById = Ranking{name: "id", column: "posts.id"}
	// ByUpvotes orders by upvote count descending, newer post first on ties.
	ByUpvotes = Ranking{name: "upvotes", column: "post_upvotes.upvotes", descending: true}
	// ByViews orders by view count descending, newer post first on ties.
	ByViews = Ranking{name: "views", column: "post_views.views", descending: true}
)

// ParseRanking maps the sortingOrder query value to a Ranking. The empty
// string selects ById.
func ParseRanking(s string) (Ranking, error) {
	switch s {
	case "", "id":
		return ById, nil
	case "upvotes":
		return ByUpvotes, nil
	case "views":
		return ByViews, nil
	default:
		return Ranking{}, ErrInvalidRankingOrder
	}
}

// Name is the public name of the order.
func (r Ranking) Name() string { return r.name }

// Column is the qualified SQL column holding the ranking metric.
func (r Ranking) Column() string { return r.column }

// OrderBy returns the ORDER BY clause, including the post id tie-break.
func (r Ranking) OrderBy() string {
	if !r.descending {
		return r.column + " ASC"
	}
	return r.column + " DESC, posts.id DESC"
}

// After returns the keyset predicate selecting rows strictly after c, with
// its bind arguments. With no cursor the ranked orders are unbounded and the
// id order starts after id 0.
func (r Ranking) After(c *Cursor) (string, []interface{}) {
	if !r.descending {
		var last uint
		if c != nil {
			last = c.TieBreak
		}
		return "posts.id > ?", []interface{}{last}
	}
	if c == nil {
		return "", nil
	}
	return fmt.Sprintf("(%[1]s < ? OR (%[1]s = ? AND posts.id < ?))", r.column),
		[]interface{}{c.Metric, c.Metric, c.TieBreak}
}

// CursorFor builds the cursor positioned at a row with the given metric and id.
func (r Ranking) CursorFor(metric int64, id uint) string {
	if !r.descending {
		return EncodeCursor(int64(id), id)
	}
	return EncodeCursor(metric, id)
}
