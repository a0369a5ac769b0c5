package log

import (
	"context"
	"log/slog"

	crdb "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

// ErrorHandler は ErrAttrKey 属性に渡されたエラーを展開する slog.Handler です。
// スタックトレースに加えて、パイプラインのエラー型が持つ fold や列名を
// 通常の属性としてレコードに追加します。
type ErrorHandler struct {
	next slog.Handler
}

// NewErrorHandler wraps next.
func NewErrorHandler(next slog.Handler) slog.Handler {
	return &ErrorHandler{next: next}
}

func (h *ErrorHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *ErrorHandler) Handle(ctx context.Context, r slog.Record) error {
	var found error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		if err, ok := attr.Value.Any().(error); ok {
			found = err
		}
		return false
	})
	if found != nil {
		r.AddAttrs(errorAttrs(found)...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ErrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrorHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ErrorHandler) WithGroup(g string) slog.Handler {
	return &ErrorHandler{next: h.next.WithGroup(g)}
}

// errorAttrs flattens the structured fields of err.
func errorAttrs(err error) []slog.Attr {
	var attrs []slog.Attr
	if details := crdb.GetSafeDetails(err).SafeDetails; len(details) > 0 && details[0] != "" {
		attrs = append(attrs, slog.String(StacktraceAttrKey, details[0]))
	}

	var fitErr *errors.FitError
	var unseen *errors.UnseenCategoryError
	var domain *errors.NumericDomainError
	var schema *errors.SchemaMismatchError
	var invalid *errors.ValidationError
	switch {
	case errors.As(err, &fitErr):
		attrs = append(attrs, slog.String(ErrorTypeKey, "FitError"), slog.Int(FoldKey, fitErr.Fold))
	case errors.As(err, &unseen):
		attrs = append(attrs, slog.String(ErrorTypeKey, "UnseenCategoryError"), slog.String(ColumnKey, unseen.Feature))
	case errors.As(err, &domain):
		attrs = append(attrs, slog.String(ErrorTypeKey, "NumericDomainError"), slog.String(ColumnKey, domain.Feature))
	case errors.As(err, &schema):
		attrs = append(attrs, slog.String(ErrorTypeKey, "SchemaMismatchError"))
	case errors.As(err, &invalid):
		attrs = append(attrs, slog.String(ErrorTypeKey, "ValidationError"), slog.String(ColumnKey, invalid.ParamName))
	}
	return attrs
}
