package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles the request context with an optional open transaction so
// repos and guards can run inside or outside a transaction boundary.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func New(ctx context.Context, tx *gorm.DB) Context {
	return Context{Ctx: ctx, Tx: tx}
}
