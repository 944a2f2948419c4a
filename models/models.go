// models/models.go - Schema registry
package models

// All returns one zero value of every persisted model, parents before children.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Question{},
		&GameRoom{},
		&GameParticipant{},
		&GameQuestion{},
		&PlayerAnswer{},
		&Leaderboard{},
	}
}

// TableNames lists the tables created by the schema, in All() order.
func TableNames() []string {
	return []string{
		User{}.TableName(),
		Category{}.TableName(),
		Question{}.TableName(),
		GameRoom{}.TableName(),
		GameParticipant{}.TableName(),
		GameQuestion{}.TableName(),
		PlayerAnswer{}.TableName(),
		Leaderboard{}.TableName(),
	}
}
