package model

import "time"

// AllowedStudent is a member of a policy's allow-list. (policy, email) and
// (policy, student number) are unique; the same person may appear on several
// policies' lists.
type AllowedStudent struct {
	ID            int64     `json:"id"`
	PolicyID      int64     `json:"policy_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	StudentNumber string    `json:"student_number"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
}
