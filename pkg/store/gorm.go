package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	bytes, err := scanBytes(value, "JSONAny")
	if err != nil || bytes == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONStringMap is a custom GORM type for map[string]string stored as JSON.
type JSONStringMap map[string]string

// Scan implements the sql.Scanner interface for JSONStringMap.
func (m *JSONStringMap) Scan(value any) error {
	bytes, err := scanBytes(value, "JSONStringMap")
	if err != nil || bytes == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONStringMap.
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanBytes(value any, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported type for %s: %T", typeName, value)
	}
}

// ResourceRecord is the row backing one resource.
type ResourceRecord struct {
	Kind              string        `gorm:"primaryKey;column:kind;type:varchar(64)"`
	Namespace         string        `gorm:"primaryKey;column:namespace;type:varchar(255)"`
	Name              string        `gorm:"primaryKey;column:name;type:varchar(255)"`
	APIVersion        string        `gorm:"column:api_version;type:varchar(32)"`
	Cluster           string        `gorm:"column:cluster;type:varchar(255)"`
	Labels            JSONStringMap `gorm:"column:labels;type:text"`
	Spec              JSONAny       `gorm:"column:spec;type:text"`
	Status            JSONAny       `gorm:"column:status;type:text"`
	CreationTimestamp *time.Time    `gorm:"column:creation_timestamp"`
	UpdatedAt         time.Time     `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (ResourceRecord) TableName() string { return "resources" }

func recordFromResource(r *resource.Resource) *ResourceRecord {
	return &ResourceRecord{
		Kind:              string(r.Kind),
		Namespace:         r.Metadata.Namespace,
		Name:              r.Metadata.Name,
		APIVersion:        r.APIVersion,
		Cluster:           r.Metadata.Cluster,
		Labels:            JSONStringMap(r.Metadata.Labels),
		Spec:              JSONAny(r.Spec),
		Status:            JSONAny(r.Status),
		CreationTimestamp: r.Metadata.CreationTimestamp,
		UpdatedAt:         time.Now().UTC(),
	}
}

func (rec *ResourceRecord) toResource() *resource.Resource {
	return &resource.Resource{
		APIVersion: rec.APIVersion,
		Kind:       resource.Kind(rec.Kind),
		Metadata: resource.Metadata{
			Name:              rec.Name,
			Namespace:         rec.Namespace,
			Cluster:           rec.Cluster,
			Labels:            map[string]string(rec.Labels),
			CreationTimestamp: rec.CreationTimestamp,
		},
		Spec:   resource.Spec(rec.Spec),
		Status: map[string]any(rec.Status),
	}
}

// GormRepository persists resources in a single "resources" table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GormRepository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the resources table.
func (s *GormRepository) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ResourceRecord{}); err != nil {
		return fmt.Errorf("auto-migrate resources: %w", err)
	}
	return nil
}

func (s *GormRepository) Get(ctx context.Context, key resource.Key) (*resource.Resource, error) {
	var rec ResourceRecord
	err := s.db.WithContext(ctx).Where(
		"kind = ? AND namespace = ? AND name = ?",
		string(key.Kind), key.Namespace, key.Name,
	).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return rec.toResource(), nil
}

func (s *GormRepository) List(ctx context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error) {
	query := s.db.WithContext(ctx).Where("kind = ?", string(kind))
	if namespace != "" {
		query = query.Where("namespace = ?", namespace)
	}
	var recs []ResourceRecord
	if err := query.Order("namespace ASC, name ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	out := make([]*resource.Resource, len(recs))
	for i := range recs {
		out[i] = recs[i].toResource()
	}
	return out, nil
}

// Put creates or replaces a resource using an upsert on the primary key.
func (s *GormRepository) Put(ctx context.Context, r *resource.Resource) error {
	rec := recordFromResource(r)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "namespace"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"api_version", "cluster", "labels", "spec", "status", "creation_timestamp", "updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("put %s: %w", r.Key(), err)
	}
	return nil
}

func (s *GormRepository) Delete(ctx context.Context, key resource.Key) (bool, error) {
	result := s.db.WithContext(ctx).Where(
		"kind = ? AND namespace = ? AND name = ?",
		string(key.Kind), key.Namespace, key.Name,
	).Delete(&ResourceRecord{})
	if result.Error != nil {
		return false, fmt.Errorf("delete %s: %w", key, result.Error)
	}
	return result.RowsAffected > 0, nil
}
