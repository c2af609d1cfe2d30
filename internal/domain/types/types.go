// Package types contains common types used across the application
package types

import "time"

// Entry is one repository's position on the health leaderboard.
type Entry struct {
	Rank      int       `json:"rank"`
	Repo      string    `json:"repo_name"`
	Score     float64   `json:"score"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Less reports whether e ranks ahead of o: higher score first, then repo name.
func (e Entry) Less(o Entry) bool {
	if e.Score != o.Score {
		return e.Score > o.Score
	}
	return e.Repo < o.Repo
}
