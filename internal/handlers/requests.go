package handlers

// RatingRequest is the body of a hall rating submission
type RatingRequest struct {
	Score int `json:"score"`
}

// CommentRequest is the body of a feed post
type CommentRequest struct {
	DiningHallName string `json:"dining_hall_name"`
	Content        string `json:"content"`
}

// ProfileUpdateRequest changes profile fields. Omitted fields are kept.
type ProfileUpdateRequest struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// UsernameRequest is the body of a username change
type UsernameRequest struct {
	Username string `json:"username"`
}
