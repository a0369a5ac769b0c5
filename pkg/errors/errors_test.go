package errors

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "featurelab: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "PredictProba",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "featurelab: PredictProba: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			// 基本的なエラーメッセージの確認
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("PredictProba", 10, 3, 1)

	want := "featurelab: PredictProba: dimension mismatch on axis 1 (features). Expected 10, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewSchemaMismatchError(t *testing.T) {
	err := NewSchemaMismatchError("WOE", []string{"genres", "cities", "dow"}, []string{"cities", "titles"})

	var schemaErr *SchemaMismatchError
	if !As(err, &schemaErr) {
		t.Fatal("Error should be castable to *SchemaMismatchError")
	}
	if got := strings.Join(schemaErr.OnlyLeft, ","); got != "dow,genres" {
		t.Errorf("OnlyLeft = %q, want %q", got, "dow,genres")
	}
	if got := strings.Join(schemaErr.OnlyRight, ","); got != "titles" {
		t.Errorf("OnlyRight = %q, want %q", got, "titles")
	}
	if !strings.Contains(err.Error(), "same columns") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestDomainErrorsCarryContext(t *testing.T) {
	unseen := NewUnseenCategoryError("WOEEncoder.Transform", "cities", "kyoto")
	var unseenErr *UnseenCategoryError
	if !As(unseen, &unseenErr) || unseenErr.Value != "kyoto" {
		t.Errorf("expected UnseenCategoryError for kyoto, got %v", unseen)
	}

	domain := NewNumericDomainError("WOE", "genres", "category has zero probability in the bad class", 0)
	var domainErr *NumericDomainError
	if !As(domain, &domainErr) || domainErr.Feature != "genres" {
		t.Errorf("expected NumericDomainError for genres, got %v", domain)
	}

	cause := fmt.Errorf("only one class present")
	fit := NewFitError("CVLoop", 2, cause)
	var fitErr *FitError
	if !As(fit, &fitErr) || fitErr.Fold != 2 {
		t.Errorf("expected FitError for fold 2, got %v", fit)
	}
	if !Is(fit, cause) {
		t.Error("FitError should unwrap to its cause")
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrColumnNotFound, "column %q", "segment")

	if !Is(wrapped, ErrColumnNotFound) {
		t.Error("Expected Is(wrapped, ErrColumnNotFound) to be true")
	}
	if !strings.Contains(wrapped.Error(), `column "segment"`) {
		t.Errorf("Expected wrapped error to contain column name, got %q", wrapped.Error())
	}
}

func TestWarnUsesHandler(t *testing.T) {
	var got error
	prev := SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(prev)

	Warn(NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))

	var metricWarn *UndefinedMetricWarning
	if !errors.As(got, &metricWarn) {
		t.Fatalf("expected UndefinedMetricWarning, got %v", got)
	}
	if metricWarn.Result != 0.5 {
		t.Errorf("Result = %v, want 0.5", metricWarn.Result)
	}
}

func TestSafeExecute(t *testing.T) {
	// 正常系
	if err := SafeExecute("op", func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	// 関数のエラーはそのまま返る
	orig := fmt.Errorf("function error")
	if err := SafeExecute("op", func() error { return orig }); err != orig {
		t.Fatalf("expected original error, got %v", err)
	}

	// panicはPanicErrorに変換される
	err := SafeExecute("fold fit", func() error { panic("index out of range") })
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %T", err)
	}
	if panicErr.Error() != "panic in fold fit: index out of range" {
		t.Errorf("unexpected message %q", panicErr.Error())
	}
	if panicErr.StackTrace == "" {
		t.Error("expected a stack trace")
	}
}

func TestRecoverKeepsExistingError(t *testing.T) {
	orig := fmt.Errorf("original error")
	fn := func() (err error) {
		defer Recover(&err, "op")
		err = orig
		panic("boom")
	}

	err := fn()
	if !errors.Is(err, orig) {
		t.Error("recovered error should wrap the original error")
	}
	if !strings.Contains(err.Error(), "panic in op") {
		t.Errorf("missing panic info: %s", err.Error())
	}
}

func TestNumericalHelpers(t *testing.T) {
	if err := CheckScalar("op", "f", math.Inf(1)); err == nil {
		t.Error("expected error for +Inf")
	}
	if err := CheckFinite("op", "f", []float64{1, 2, math.NaN()}); err == nil {
		t.Error("expected error for NaN")
	}
	if got := ClipProbability(0, 1e-15); got != 1e-15 {
		t.Errorf("ClipProbability(0) = %v", got)
	}
	if got := Sigmoid(-1000); got != 0 || math.IsNaN(got) {
		t.Errorf("Sigmoid(-1000) = %v, want 0", got)
	}
	p := Softmax([]float64{1000, 1000}, nil)
	if math.Abs(p[0]-0.5) > 1e-12 || math.Abs(p[1]-0.5) > 1e-12 {
		t.Errorf("Softmax overflowed: %v", p)
	}
}
