package cascade

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"gorm.io/gorm"
)

// plan deletes rows of one kind after running its dependent steps. Files
// names the columns holding storage paths that must be removed after commit.
type plan struct {
	kind  string
	model any
	files []string
	steps []step
}

// step either deletes the rows of model referencing the parent through column,
// or, when child is set, expands those rows into a nested plan.
type step struct {
	kind   string
	model  any
	column string
	child  *plan
}

var (
	orderPlan = &plan{
		kind:  "orders",
		model: &models.Order{},
		steps: []step{
			{kind: "messages", model: &models.Message{}, column: "order_id"},
			{kind: "reviews", model: &models.Review{}, column: "order_id"},
			{kind: "order_items", model: &models.OrderItem{}, column: "order_id"},
		},
	}

	productPlan = &plan{
		kind:  "products",
		model: &models.Product{},
		files: []string{"image_path"},
		steps: []step{
			{kind: "reviews", model: &models.Review{}, column: "product_id"},
			{kind: "cart_items", model: &models.CartItem{}, column: "product_id"},
			{kind: "order_items", model: &models.OrderItem{}, column: "product_id"},
		},
	}

	stallPlan = &plan{
		kind:  "stalls",
		model: &models.Stall{},
		files: []string{"logo_path", "cover_path"},
		steps: []step{
			{model: &models.Order{}, column: "stall_id", child: orderPlan},
			{model: &models.Product{}, column: "stall_id", child: productPlan},
		},
	}

	cartPlan = &plan{
		kind:  "carts",
		model: &models.Cart{},
		steps: []step{
			{kind: "cart_items", model: &models.CartItem{}, column: "cart_id"},
		},
	}

	userPlan = &plan{
		kind:  "users",
		model: &models.User{},
		steps: []step{
			{model: &models.Stall{}, column: "owner_id", child: stallPlan},
			{model: &models.Order{}, column: "buyer_id", child: orderPlan},
			{kind: "messages", model: &models.Message{}, column: "user_id"},
			{model: &models.Cart{}, column: "user_id", child: cartPlan},
			{kind: "reviews", model: &models.Review{}, column: "user_id"},
			{kind: "notifications", model: &models.Notification{}, column: "user_id"},
		},
	}
)

// executor runs plans against one transaction, accumulating a report.
type executor struct {
	tx     *gorm.DB
	report *Report
}

func (e *executor) run(ctx context.Context, p *plan, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, st := range p.steps {
		if st.child != nil {
			childIDs, err := e.idsReferencing(ctx, st.model, st.column, ids)
			if err != nil {
				return err
			}
			if err := e.run(ctx, st.child, childIDs); err != nil {
				return err
			}
			continue
		}
		if err := e.delete(ctx, st.kind, st.model, st.column, ids); err != nil {
			return err
		}
	}
	if err := e.collectFiles(ctx, p, ids); err != nil {
		return err
	}
	return e.delete(ctx, p.kind, p.model, "id", ids)
}

// idsReferencing re-reads dependents at the time the step runs, including
// soft-deleted rows.
func (e *executor) idsReferencing(ctx context.Context, model any, column string, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := e.tx.WithContext(ctx).
		Unscoped().
		Model(model).
		Where(column+" IN ?", ids).
		Order("id").
		Pluck("id", &out).Error
	return out, err
}

func (e *executor) delete(ctx context.Context, kind string, model any, column string, ids []uuid.UUID) error {
	res := e.tx.WithContext(ctx).
		Unscoped().
		Where(column+" IN ?", ids).
		Delete(model)
	if res.Error != nil {
		return res.Error
	}
	e.report.add(kind, res.RowsAffected)
	return nil
}

func (e *executor) collectFiles(ctx context.Context, p *plan, ids []uuid.UUID) error {
	for _, column := range p.files {
		var paths []sql.NullString
		err := e.tx.WithContext(ctx).
			Unscoped().
			Model(p.model).
			Where("id IN ?", ids).
			Pluck(column, &paths).Error
		if err != nil {
			return err
		}
		for _, path := range paths {
			if path.Valid && path.String != "" {
				e.report.Files = append(e.report.Files, path.String)
			}
		}
	}
	return nil
}
