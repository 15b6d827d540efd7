package executor

import "context"

type taskIDKey struct{}

func WithTaskID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskID returns the id of the executor task ctx belongs to.
func TaskID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(taskIDKey{}).(int64)
	return id, ok
}
