package bookingctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"ragdesk/src/core/rag"
)

type Booking struct {
	ID        int64  `gorm:"primaryKey"`
	SessionID string `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"not null"`
	Date      string `gorm:"not null;column:booking_date"`
	Time      string `gorm:"not null;column:booking_time"`
	Query     string
	CreatedAt time.Time
}

func (Booking) TableName() string {
	return "bookings"
}

type Repository struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	node, err := snowflake.NewNode(3) // Node number 3 for bookings
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	return &Repository{
		db:        db,
		snowflake: node,
	}, nil
}

// AutoMigrate creates or updates the bookings table
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Booking{})
}

func (r *Repository) Create(ctx context.Context, booking *rag.Booking) error {
	model := &Booking{
		ID:        r.snowflake.Generate().Int64(),
		SessionID: booking.SessionID,
		Name:      booking.Name,
		Email:     booking.Email,
		Date:      booking.Date,
		Time:      booking.Time,
		Query:     booking.Query,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = model.ID
	booking.CreatedAt = model.CreatedAt
	return nil
}

func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]rag.Booking, error) {
	var models []Booking
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", result.Error)
	}

	bookings := make([]rag.Booking, 0, len(models))
	for _, m := range models {
		bookings = append(bookings, rag.Booking{
			ID:        m.ID,
			SessionID: m.SessionID,
			Name:      m.Name,
			Email:     m.Email,
			Date:      m.Date,
			Time:      m.Time,
			Query:     m.Query,
			CreatedAt: m.CreatedAt,
		})
	}
	return bookings, nil
}
