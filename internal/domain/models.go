package domain

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Loan{},
		&Milestone{},
		&Validation{},
		&Investment{},
		&Reputation{},
		&Notification{},
	}
}
