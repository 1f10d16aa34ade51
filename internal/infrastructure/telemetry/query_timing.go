package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// queryStartKey holds the time a statement began, shared by the tracing and
// metrics callbacks
type queryStartKey struct{}

func markQueryStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func queryStartedAt(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	return start, ok
}
