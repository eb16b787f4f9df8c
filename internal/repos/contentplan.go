package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/types"
)

type ContentPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plans []*types.ContentPlan) ([]*types.ContentPlan, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.ContentPlan, error)
	ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]*types.ContentPlan, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, updates map[string]any) error

	// ClaimForProcessing transitions the plan to `to` only when its status is
	// one of `from`, in a single UPDATE. Returns false without error when the
	// plan was not claimable (already active or in a non-startable status).
	ClaimForProcessing(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, from []types.PlanStatus, to types.PlanStatus) (bool, error)

	// MutateGenerationMeta loads the plan under a row lock, applies mutate to
	// the decoded run history, and writes the whole blob (plus any plan
	// fields mutate changed) back in the same transaction. This keeps
	// concurrent publish/edit calls from losing updates.
	MutateGenerationMeta(ctx context.Context, tenantID, id uuid.UUID, mutate func(plan *types.ContentPlan, meta *types.GenerationMeta) error) (*types.ContentPlan, error)

	// MarkRetry atomically moves a failed plan back to planned, increments
	// retry_count, and clears the error log. Returns false when the plan was
	// not in failed status.
	MarkRetry(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (bool, error)

	Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error
}

type contentPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentPlanRepo(db *gorm.DB, baseLog *logger.Logger) ContentPlanRepo {
	return &contentPlanRepo{db: db, log: baseLog.With("repo", "ContentPlanRepo")}
}

func (r *contentPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.ContentPlan) ([]*types.ContentPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.ContentPlan{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *contentPlanRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.ContentPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var plan types.ContentPlan
	err := transaction.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("plan %s: %w", id, apierr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *contentPlanRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]*types.ContentPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var plans []*types.ContentPlan
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *contentPlanRepo) UpdateFields(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.ContentPlan{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(updates).Error
}

func (r *contentPlanRepo) ClaimForProcessing(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, from []types.PlanStatus, to types.PlanStatus) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ContentPlan{}).
		Where("id = ? AND tenant_id = ? AND status IN ?", id, tenantID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *contentPlanRepo) MutateGenerationMeta(ctx context.Context, tenantID, id uuid.UUID, mutate func(plan *types.ContentPlan, meta *types.GenerationMeta) error) (*types.ContentPlan, error) {
	var out *types.ContentPlan
	err := r.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		q := txx
		if txx.Dialector.Name() == "postgres" {
			q = txx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var plan types.ContentPlan
		qErr := q.Where("id = ? AND tenant_id = ?", id, tenantID).First(&plan).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("plan %s: %w", id, apierr.ErrNotFound)
		}
		if qErr != nil {
			return qErr
		}

		meta := plan.GenerationMeta()
		if err := mutate(&plan, meta); err != nil {
			return err
		}

		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode generation metadata: %w", err)
		}
		plan.GenerationMetadata = datatypes.JSON(metaJSON)
		plan.UpdatedAt = time.Now()

		if err := txx.Model(&types.ContentPlan{}).
			Where("id = ? AND tenant_id = ?", id, tenantID).
			Updates(map[string]any{
				"generation_metadata":       plan.GenerationMetadata,
				"status":                    plan.Status,
				"latest_score":              plan.LatestScore,
				"generated_content_item_id": plan.GeneratedContentItemID,
				"updated_by":                plan.UpdatedBy,
				"updated_at":                plan.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		out = &plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentPlanRepo) MarkRetry(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ContentPlan{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, types.PlanStatusFailed).
		Updates(map[string]any{
			"status":      types.PlanStatusPlanned,
			"retry_count": gorm.Expr("retry_count + 1"),
			"error_log":   "",
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *contentPlanRepo) Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&types.ContentPlan{}).Error
}
