package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/rentroll_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeletedGuardPlugin scopes queries away from soft-deleted documents by
// automatically appending `_deleted = 0` when the model carries the flag.
// Records are never hard-deleted in this system; the flag is the only thing
// separating live data from tombstones, so reads get the filter centrally
// instead of trusting every call site.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must filter _deleted manually.
// - Internal bypass (migrations, ops CLIs) is explicit via a context flag.
type DeletedGuardPlugin struct{}

func NewDeletedGuardPlugin() *DeletedGuardPlugin { return &DeletedGuardPlugin{} }

func (p *DeletedGuardPlugin) Name() string { return "deleted_guard" }

func (p *DeletedGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("deleted_guard:query", deletedGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("deleted_guard:row", deletedGuardCallback); err != nil {
		return err
	}
	return nil
}

const deletedColumn = "_deleted"

func deletedGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldIncludeDeleted(ctx) {
		return
	}

	// Only apply if the current model/table carries the soft-delete flag.
	if db.Statement.Schema == nil {
		return
	}
	hasDeletedFlag := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, deletedColumn) {
			hasDeletedFlag = true
			break
		}
	}
	if !hasDeletedFlag {
		return
	}

	// Don't duplicate an explicit filter.
	if whereHasDeletedFlag(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: deletedColumn},
				Value:  false,
			},
		},
	})
}

func shouldIncludeDeleted(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, appctx.ContextKeyIncludeDeleted)
	return ok && v
}

func whereHasDeletedFlag(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasDeletedFlag(e) {
			return true
		}
	}
	return false
}

func exprHasDeletedFlag(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsDeletedFlag(v.Column)
	case clause.Neq:
		return colIsDeletedFlag(v.Column)
	case clause.IN:
		return colIsDeletedFlag(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasDeletedFlag(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasDeletedFlag(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), deletedColumn)
	default:
		return false
	}
}

func colIsDeletedFlag(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, deletedColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, deletedColumn)
	default:
		return false
	}
}
