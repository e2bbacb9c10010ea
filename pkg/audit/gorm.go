package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// Record is the row backing one audit event.
type Record struct {
	ID        string              `gorm:"primaryKey;column:id;type:varchar(36)"`
	User      string              `gorm:"column:user_name;index:idx_audit_user_time,priority:1;not null"`
	IsAdmin   bool                `gorm:"column:is_admin"`
	Kind      string              `gorm:"column:kind;not null"`
	Namespace string              `gorm:"column:namespace;index:idx_audit_ns_time,priority:1"`
	Name      string              `gorm:"column:name;not null"`
	Cluster   string              `gorm:"column:cluster"`
	Labels    store.JSONStringMap `gorm:"column:labels;type:text"`
	Operation string              `gorm:"column:operation;not null"`
	Before    store.JSONAny       `gorm:"column:before_spec;type:text"`
	After     store.JSONAny       `gorm:"column:after_spec;type:text"`
	CreatedAt time.Time           `gorm:"column:created_at;index:idx_audit_user_time,priority:2;index:idx_audit_ns_time,priority:2;index"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "audit_events" }

func recordFromEvent(e Event) *Record {
	return &Record{
		ID:        e.ID,
		User:      e.User,
		IsAdmin:   e.IsAdmin,
		Kind:      string(e.Kind),
		Namespace: e.Metadata.Namespace,
		Name:      e.Metadata.Name,
		Cluster:   e.Metadata.Cluster,
		Labels:    store.JSONStringMap(e.Metadata.Labels),
		Operation: string(e.Operation),
		Before:    store.JSONAny(e.Before),
		After:     store.JSONAny(e.After),
		CreatedAt: e.Timestamp.UTC(),
	}
}

func (r Record) toEvent() Event {
	return Event{
		ID:        r.ID,
		User:      r.User,
		IsAdmin:   r.IsAdmin,
		Timestamp: r.CreatedAt.UTC(),
		Kind:      resource.Kind(r.Kind),
		Metadata: resource.Metadata{
			Name:      r.Name,
			Namespace: r.Namespace,
			Cluster:   r.Cluster,
			Labels:    map[string]string(r.Labels),
		},
		Operation: resource.ApplyStatus(r.Operation),
		Before:    resource.Spec(r.Before),
		After:     resource.Spec(r.After),
	}
}

// GormListener appends events to the audit_events table.
type GormListener struct {
	db *gorm.DB
}

// NewGormListener creates a GormListener.
func NewGormListener(db *gorm.DB) *GormListener {
	return &GormListener{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (g *GormListener) AutoMigrate() error {
	return g.db.AutoMigrate(&Record{})
}

func (g *GormListener) Name() string { return "database" }

// Handle appends e.
func (g *GormListener) Handle(ctx context.Context, e Event) error {
	if err := g.db.WithContext(ctx).Create(recordFromEvent(e)).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Since returns stored events created at or after t, oldest first.
func (g *GormListener) Since(ctx context.Context, t time.Time) ([]Event, error) {
	var records []Record
	if err := g.db.WithContext(ctx).Where("created_at >= ?", t.UTC()).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	out := make([]Event, len(records))
	for i, r := range records {
		out[i] = r.toEvent()
	}
	return out, nil
}

// DeleteOlderThan deletes events created before cutoff and returns how
// many were removed.
func (g *GormListener) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := g.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&Record{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
