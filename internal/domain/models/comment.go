package models

import "time"

// Comment is a community comment read from the document store.
type Comment struct {
	Asset     string
	Text      string
	Author    Actor
	CreatedAt time.Time
}

// CommentTexts flattens comments into the text list handed to analysis providers.
func CommentTexts(comments []Comment) []string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		if c.Text == "" {
			continue
		}
		out = append(out, c.Text)
	}
	return out
}
