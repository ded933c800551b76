package interaction

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type interactionRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	SessionID string    `gorm:"index"`
	Name      string    `gorm:"not null;default:''"`
	Product   string    `gorm:"not null;default:''"`
	Timestamp time.Time `gorm:"index;not null"`
}

func (interactionRow) TableName() string { return "interactions" }

func toRow(rec Record) interactionRow {
	return interactionRow{
		ID:        rec.ID,
		SessionID: rec.SessionID,
		Name:      rec.Name,
		Product:   rec.Product,
		Timestamp: rec.Timestamp,
	}
}

func (r interactionRow) record() Record {
	return Record{
		ID:        r.ID,
		SessionID: r.SessionID,
		Name:      r.Name,
		Product:   r.Product,
		Timestamp: r.Timestamp.UTC(),
	}
}

type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: POSTGRES_DSN is empty", ErrNotConfigured)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&interactionRow{}); err != nil {
		return nil, fmt.Errorf("migrate interactions: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Save(ctx context.Context, rec *Record) error {
	row := toRow(*rec)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	var rows []interactionRow
	if err := p.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *PostgresStore) Close(context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
