package api

import (
	"time"

	"tramita/internal/deliver"
	"tramita/internal/fanout"
	"tramita/internal/store"
)

// Wire DTOs. Kept separate from the store models so the JSON surface can
// stay stable while the schema moves.

type DocumentDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Workspace  string `json:"workspace"`
	CreatedBy  string `json:"createdBy"`
	AssignedTo string `json:"assignedTo,omitempty"`
	Version    string `json:"version"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func FromDocument(doc *store.Document) DocumentDTO {
	return DocumentDTO{
		ID:         doc.ID,
		Title:      doc.Title,
		Status:     string(doc.Status),
		Workspace:  string(doc.Workspace),
		CreatedBy:  doc.CreatedBy,
		AssignedTo: doc.AssignedTo,
		Version:    doc.Version.String(),
		CreatedAt:  doc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type NotificationDTO struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	Type           string            `json:"type"`
	Priority       string            `json:"priority"`
	CreatedBy      string            `json:"createdBy"`
	CreatedAt      string            `json:"createdAt"`
	ExpiresAt      string            `json:"expiresAt,omitempty"`
	RecipientCount int               `json:"recipientCount"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func FromNotification(n store.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:             n.ID,
		Title:          n.Title,
		Content:        n.Content,
		Type:           string(n.Type),
		Priority:       string(n.Priority),
		CreatedBy:      n.CreatedBy,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
		RecipientCount: n.RecipientCount,
		Metadata:       n.Metadata,
	}
	if n.ExpiresAt != nil {
		dto.ExpiresAt = n.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return dto
}

type InboxEntryDTO struct {
	Notification NotificationDTO `json:"notification"`
	IsRead       bool            `json:"isRead"`
	ReadAt       string          `json:"readAt,omitempty"`
	IsArchived   bool            `json:"isArchived"`
	ArchivedAt   string          `json:"archivedAt,omitempty"`
	Methods      []string        `json:"methods,omitempty"`
	ActionTaken  string          `json:"actionTaken,omitempty"`
}

func FromInboxEntry(entry store.UserNotification) InboxEntryDTO {
	dto := InboxEntryDTO{
		Notification: FromNotification(entry.Notification),
		IsRead:       entry.Delivery.IsRead,
		IsArchived:   entry.Delivery.IsArchived,
		ActionTaken:  entry.Delivery.ActionTaken,
	}
	if entry.Delivery.ReadAt != nil {
		dto.ReadAt = entry.Delivery.ReadAt.UTC().Format(time.RFC3339)
	}
	if entry.Delivery.ArchivedAt != nil {
		dto.ArchivedAt = entry.Delivery.ArchivedAt.UTC().Format(time.RFC3339)
	}
	for _, method := range entry.Delivery.Methods {
		dto.Methods = append(dto.Methods, string(method))
	}
	return dto
}

type InboxResponse struct {
	Entries     []InboxEntryDTO `json:"entries"`
	UnreadCount int             `json:"unreadCount"`
}

func FromInbox(inbox *Inbox) InboxResponse {
	resp := InboxResponse{
		Entries:     make([]InboxEntryDTO, 0, len(inbox.Entries)),
		UnreadCount: inbox.UnreadCount,
	}
	for _, entry := range inbox.Entries {
		resp.Entries = append(resp.Entries, FromInboxEntry(entry))
	}
	return resp
}

type CreateResultDTO struct {
	NotificationID string                       `json:"notificationId"`
	RecipientCount int                          `json:"recipientCount"`
	DeliveryStatus map[string]map[string]string `json:"deliveryStatus,omitempty"`
}

func FromCreateResult(result *fanout.Result) CreateResultDTO {
	dto := CreateResultDTO{
		NotificationID: result.NotificationID,
		RecipientCount: result.RecipientCount,
	}
	if result.DeliveryStatus != nil {
		dto.DeliveryStatus = make(map[string]map[string]string, len(result.DeliveryStatus))
		for userID, status := range result.DeliveryStatus {
			dto.DeliveryStatus[userID] = fromDeliveryStatus(status)
		}
	}
	return dto
}

func fromDeliveryStatus(status deliver.Status) map[string]string {
	out := make(map[string]string, len(status))
	for method, outcome := range status {
		out[string(method)] = outcome
	}
	return out
}

type BatchItemDTO struct {
	Index  int              `json:"index"`
	Result *CreateResultDTO `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type BatchResultDTO struct {
	TotalCount   int            `json:"totalCount"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Status       string         `json:"status"`
	Results      []BatchItemDTO `json:"results"`
}

func FromBatchResult(batch *fanout.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{
		TotalCount:   batch.TotalCount,
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
		Status:       string(batch.Status),
		Results:      make([]BatchItemDTO, 0, len(batch.Results)),
	}
	for _, item := range batch.Results {
		entry := BatchItemDTO{Index: item.Index}
		if item.Err != nil {
			entry.Error = item.Err.Error()
		} else if item.Result != nil {
			result := FromCreateResult(item.Result)
			entry.Result = &result
		}
		dto.Results = append(dto.Results, entry)
	}
	return dto
}

type StatisticsDTO struct {
	TotalNotifications int            `json:"totalNotifications"`
	TotalDeliveries    int            `json:"totalDeliveries"`
	ReadDeliveries     int            `json:"readDeliveries"`
	ByType             map[string]int `json:"byType"`
	ByPriority         map[string]int `json:"byPriority"`
}

func FromStatistics(stats *store.Statistics) StatisticsDTO {
	dto := StatisticsDTO{
		TotalNotifications: stats.TotalNotifications,
		TotalDeliveries:    stats.TotalDeliveries,
		ReadDeliveries:     stats.ReadDeliveries,
		ByType:             make(map[string]int, len(stats.ByType)),
		ByPriority:         make(map[string]int, len(stats.ByPriority)),
	}
	for typ, count := range stats.ByType {
		dto.ByType[string(typ)] = count
	}
	for priority, count := range stats.ByPriority {
		dto.ByPriority[string(priority)] = count
	}
	return dto
}
