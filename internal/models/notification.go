package models

import "time"

type NotificationType string

const (
	NotificationAlert   NotificationType = "alert"
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
)

// TargetAll: широковещательный адресат.
const TargetAll = "ALL"

type Notification struct {
	ID        string           `json:"id"`
	SchoolID  string           `json:"schoolId,omitempty"`
	Target    string           `json:"target"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}
