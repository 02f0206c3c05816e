package remote

import (
	"context"

	"github.com/penne-app/penne/internal/models"
)

// Row conversions between models and relation rows.

func RatingFromRecord(r Record) models.Rating {
	return models.Rating{
		DiningHallName: r.String("dining_hall_name"),
		UserID:         r.String("user_id"),
		Score:          r.Int("score"),
	}
}

func RatingRecord(rt models.Rating) Record {
	return Record{
		"user_id":          rt.UserID,
		"dining_hall_name": rt.DiningHallName,
		"score":            rt.Score,
	}
}

func DishFromRecord(r Record) models.Dish {
	return models.Dish{
		ID:             r.Int64("id"),
		Dish:           r.String("dish"),
		Upvotes:        r.Int("dish_upvote"),
		Downvotes:      r.Int("dish_downvote"),
		MealType:       r.String("meal_type"),
		Station:        r.String("station"),
		DiningHallName: r.String("dining_hall_name"),
		CreatedAt:      r.Time("created_at"),
	}
}

func DishRecord(d models.Dish) Record {
	row := Record{
		"dish":             d.Dish,
		"dish_upvote":      d.Upvotes,
		"dish_downvote":    d.Downvotes,
		"meal_type":        d.MealType,
		"station":          d.Station,
		"dining_hall_name": d.DiningHallName,
	}
	if d.ID != 0 {
		row["id"] = d.ID
	}
	if !d.CreatedAt.IsZero() {
		row["created_at"] = d.CreatedAt.UTC()
	}
	return row
}

func UserVoteFromRecord(r Record) models.UserDishVote {
	return models.UserDishVote{
		DishID:    r.Int64("dish_id"),
		UserID:    r.String("user_id"),
		Upvoted:   r.Bool("upvote"),
		Downvoted: r.Bool("downvote"),
	}
}

func UserVoteRecord(v models.UserDishVote) Record {
	return Record{
		"dish_id":  v.DishID,
		"user_id":  v.UserID,
		"upvote":   v.Upvoted,
		"downvote": v.Downvoted,
	}
}

func HallFromRecord(r Record) (models.DiningHall, error) {
	h := models.DiningHall{Name: r.String("name")}
	if err := r.Decode("operating_hours", &h.OperatingHours); err != nil {
		return h, err
	}
	return h, nil
}

func HallRecord(h models.DiningHall) Record {
	hours := h.OperatingHours
	if hours == nil {
		hours = map[string]models.Hours{}
	}
	return Record{"name": h.Name, "operating_hours": hours}
}

func CommentFromRecord(r Record) models.Comment {
	return models.Comment{
		ID:             r.String("id"),
		UserID:         r.String("user_id"),
		DiningHallName: r.String("dining_hall_name"),
		Content:        r.String("content"),
		CreatedAt:      r.Time("created_at"),
	}
}

func ProfileFromRecord(r Record) models.Profile {
	return models.Profile{
		ID:        r.String("id"),
		Username:  r.String("username"),
		FullName:  r.String("full_name"),
		AvatarURL: r.String("avatar_url"),
	}
}

func ProfileRecord(p models.Profile) Record {
	return Record{
		"id":         p.ID,
		"username":   p.Username,
		"full_name":  p.FullName,
		"avatar_url": p.AvatarURL,
	}
}

func FriendshipFromRecord(r Record) models.Friendship {
	return models.Friendship{
		UserID:    r.String("user_id"),
		FriendID:  r.String("friend_id"),
		CreatedAt: r.Time("created_at"),
	}
}

type tokenKey struct{}

// WithAccessToken attaches the caller's access token so stores that enforce
// row-level access can act on the user's behalf.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the token attached by WithAccessToken
func AccessToken(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}
