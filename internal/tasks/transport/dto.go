// Package transport defines request shapes for the tasks HTTP surface.
package transport

// UpdateTaskStatusRequest moves an automated task through its lifecycle.
type UpdateTaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed cancelled"`
}
