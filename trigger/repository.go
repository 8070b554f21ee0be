package trigger

import (
	"context"

	"github.com/jinzhu/gorm"
	errs "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/errors"
	"github.com/webvolta/zammad/log"
)

// Repository describes interactions with stored rules.
type Repository interface {
	Store
	// Create validates and persists a new rule.
	Create(ctx context.Context, t Trigger) (*Trigger, error)
	// Save validates and updates an existing rule.
	Save(ctx context.Context, t Trigger) (*Trigger, error)
	// Load returns a single rule by a given ID.
	Load(ctx context.Context, triggerID uuid.UUID) (*Trigger, error)
	// List returns all rules, active or not.
	List(ctx context.Context) ([]Trigger, error)
	// Delete removes a single rule by a given ID.
	Delete(ctx context.Context, triggerID uuid.UUID) error
}

// NewRepository creates a new trigger repository.
func NewRepository(db *gorm.DB) Repository {
	return &GormRepository{db: db}
}

// GormRepository is the implementation of the repository interface for
// triggers.
type GormRepository struct {
	db *gorm.DB
}

// Ensure GormRepository implements the Repository interface
var _ Repository = (*GormRepository)(nil)

// Create validates and persists a new rule.
func (r *GormRepository) Create(ctx context.Context, t Trigger) (*Trigger, error) {
	if uuid.Equal(t.ID, uuid.Nil) {
		t.ID = uuid.NewV4()
	}
	if err := t.Validate(); err != nil {
		log.Error(ctx, map[string]interface{}{"trigger_name": t.Name, "err": err}, "trigger is invalid")
		return nil, err
	}
	db := r.db.Create(&t)
	if err := db.Error; err != nil {
		log.Error(ctx, map[string]interface{}{"trigger_name": t.Name, "err": err}, "failed to create trigger")
		return nil, errs.Wrap(err, "failed to create trigger")
	}
	log.Debug(ctx, map[string]interface{}{"trigger_id": t.ID}, "trigger created successfully")
	return &t, nil
}

// Save validates and updates an existing rule.
func (r *GormRepository) Save(ctx context.Context, t Trigger) (*Trigger, error) {
	if err := t.Validate(); err != nil {
		log.Error(ctx, map[string]interface{}{"trigger_id": t.ID, "err": err}, "trigger is invalid")
		return nil, err
	}
	existing := Trigger{}
	tx := r.db.Where("id = ?", t.ID).First(&existing)
	if tx.RecordNotFound() {
		return nil, errors.NewNotFoundError("trigger", t.ID.String())
	}
	if tx.Error != nil {
		return nil, errs.Wrap(tx.Error, "failed to load trigger")
	}
	tx = r.db.Save(&t)
	if err := tx.Error; err != nil {
		log.Error(ctx, map[string]interface{}{"trigger_id": t.ID, "err": err}, "failed to save trigger")
		return nil, errs.Wrap(err, "failed to save trigger")
	}
	return &t, nil
}

// Load returns a single rule by a given ID.
func (r *GormRepository) Load(ctx context.Context, triggerID uuid.UUID) (*Trigger, error) {
	var t Trigger
	tx := r.db.Where("id = ?", triggerID).First(&t)
	if tx.RecordNotFound() {
		log.Info(ctx, map[string]interface{}{
			"trigger_id": triggerID.String(),
		}, "trigger not found")
		return nil, errors.NewNotFoundError("trigger", triggerID.String())
	}
	if tx.Error != nil {
		return nil, errs.Wrap(tx.Error, "failed to load trigger")
	}
	return &t, nil
}

// List returns all rules, active or not.
func (r *GormRepository) List(ctx context.Context) ([]Trigger, error) {
	var objs []Trigger
	err := r.db.Order("priority ASC, id ASC").Find(&objs).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, errs.Wrap(err, "failed to list triggers")
	}
	return objs, nil
}

// ActiveRules implements Store: the enabled rules ordered by priority with a
// stable tie-break on id.
func (r *GormRepository) ActiveRules(ctx context.Context) ([]Trigger, error) {
	var objs []Trigger
	err := r.db.Where("active = ?", true).Order("priority ASC, id ASC").Find(&objs).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, errs.Wrap(err, "failed to list active triggers")
	}
	return objs, nil
}

// Delete removes a single rule by a given ID.
func (r *GormRepository) Delete(ctx context.Context, triggerID uuid.UUID) error {
	t := Trigger{ID: triggerID}
	tx := r.db.Delete(&t)
	if err := tx.Error; err != nil {
		return errs.Wrap(err, "failed to delete trigger")
	}
	if tx.RowsAffected == 0 {
		return errors.NewNotFoundError("trigger", triggerID.String())
	}
	return nil
}
