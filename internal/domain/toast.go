package domain

import "time"

// ToastVariant selects the visual style of a notification.
type ToastVariant string

const (
	ToastDefault     ToastVariant = "default"
	ToastDestructive ToastVariant = "destructive"
)

// Toast is a transient, dismissable notification.
type Toast struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Variant     ToastVariant `json:"variant"`
	Source      string       `json:"source,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
