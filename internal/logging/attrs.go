package logging

import "log/slog"

// Standardized structured logging keys shared across components.
const (
	// FieldComponent names the emitting component.
	FieldComponent = "component"
	// FieldPatchSetID identifies a patch set.
	FieldPatchSetID = "patch_set_id"
	// FieldPatchItemID identifies a patch item.
	FieldPatchItemID = "patch_item_id"
	// FieldPlanID identifies a writeback plan.
	FieldPlanID = "plan_id"
	// FieldRunID identifies an apply run.
	FieldRunID = "run_id"
	// FieldBlobHash identifies a content blob.
	FieldBlobHash = "blob_hash"
	// FieldTarget is the physical target path of a writeback.
	FieldTarget = "target"
	// FieldStrategy names the writeback strategy in use.
	FieldStrategy = "strategy"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic any form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}
