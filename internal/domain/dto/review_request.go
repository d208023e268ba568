package dto

// ReviewRequest решение модератора через HTTP API
type ReviewRequest struct {
	ActorID   int64  `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Reason    string `json:"reason"`
}
