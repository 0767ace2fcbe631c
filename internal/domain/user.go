package domain

// User is the read model of an account as seen by notification flows.
type User struct {
	ID    UserID
	Name  string
	Email string
}
