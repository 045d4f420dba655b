package models

// Team groups players for display on the scoreboard.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
