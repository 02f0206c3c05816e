// Package votes tracks per-user dish votes with optimistic local updates and
// asynchronous writes to the store.
package votes

import "github.com/penne-app/penne/internal/models"

// Tap is a press of the upvote or downvote button
type Tap int

const (
	TapUpvote Tap = iota
	TapDownvote
)

func (t Tap) String() string {
	if t == TapDownvote {
		return "downvote"
	}
	return "upvote"
}

// Delta is the counter change implied by one tap. Each field is -1, 0 or +1.
type Delta struct {
	Upvote   int `json:"upvote"`
	Downvote int `json:"downvote"`
}

// Inverse returns the delta that undoes d
func (d Delta) Inverse() Delta {
	return Delta{Upvote: -d.Upvote, Downvote: -d.Downvote}
}

// Transition returns the state after a tap and the counter delta it causes.
//
//	current    tap upvote              tap downvote
//	none       upvoted   (+1, 0)       downvoted (0, +1)
//	upvoted    none      (-1, 0)       downvoted (-1, +1)
//	downvoted  upvoted   (+1, -1)      none      (0, -1)
func Transition(current models.VoteState, tap Tap) (models.VoteState, Delta) {
	switch current {
	case models.VoteUpvoted:
		if tap == TapUpvote {
			return models.VoteNone, Delta{Upvote: -1}
		}
		return models.VoteDownvoted, Delta{Upvote: -1, Downvote: 1}
	case models.VoteDownvoted:
		if tap == TapUpvote {
			return models.VoteUpvoted, Delta{Upvote: 1, Downvote: -1}
		}
		return models.VoteNone, Delta{Downvote: -1}
	default:
		if tap == TapUpvote {
			return models.VoteUpvoted, Delta{Upvote: 1}
		}
		return models.VoteDownvoted, Delta{Downvote: 1}
	}
}

// apply adds d to c, never going below zero
func apply(c models.DishVoteCounter, d Delta) models.DishVoteCounter {
	c.Upvotes += d.Upvote
	c.Downvotes += d.Downvote
	if c.Upvotes < 0 {
		c.Upvotes = 0
	}
	if c.Downvotes < 0 {
		c.Downvotes = 0
	}
	return c
}
