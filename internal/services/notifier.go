package services

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/textcentre/textcentre-backend/internal/config"
	"github.com/textcentre/textcentre-backend/internal/models"
	"gorm.io/gorm"
)

// Notifier delivers user-facing messages on entitlement changes: an in-app
// notification row plus an optional email. Delivery is fire-and-forget; a
// failure here must never roll back the change that triggered it.
type Notifier struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewNotifier(db *gorm.DB, cfg *config.Config) *Notifier {
	return &Notifier{db: db, cfg: cfg}
}

func (n *Notifier) Notify(userID uuid.UUID, ntype, title, body string) {
	go func() {
		record := models.Notification{
			ID:     uuid.New(),
			UserID: userID,
			Type:   ntype,
			Title:  title,
			Body:   body,
		}
		if err := n.db.Create(&record).Error; err != nil {
			slog.Error("failed to store notification", "user_id", userID, "type", ntype, "error", err)
		}

		if n.cfg.SendGridAPIKey == "" {
			return
		}
		var user models.User
		if err := n.db.Select("email", "name").First(&user, "id = ?", userID).Error; err != nil {
			slog.Error("failed to load user for email", "user_id", userID, "error", err)
			return
		}

		from := mail.NewEmail(n.cfg.EmailFromName, n.cfg.EmailFrom)
		to := mail.NewEmail(user.Name, user.Email)
		message := mail.NewSingleEmail(from, title, to, body, body)
		client := sendgrid.NewSendClient(n.cfg.SendGridAPIKey)
		if _, err := client.Send(message); err != nil {
			slog.Error("failed to send notification email", "user_id", userID, "type", ntype, "error", err)
		}
	}()
}

func (n *Notifier) List(userID uuid.UUID) ([]models.Notification, error) {
	var notifications []models.Notification
	err := n.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&notifications).Error
	return notifications, err
}

func (n *Notifier) MarkRead(userID, notificationID uuid.UUID) error {
	return n.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true).Error
}
