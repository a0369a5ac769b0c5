// Package errors はfeaturelab全体のエラーハンドリングと警告システムを提供します。
// 構造化されたエラー型はcockroachdb/errorsでスタックトレースを付与し、
// zerologのイベントとして出力できます。
package errors

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// WarningHandler は Warn に渡された警告を受け取ります。
type WarningHandler func(w error)

var (
	warningMu sync.Mutex
	// SetupLogger が呼ばれるまでは標準の log パッケージへ出す
	warningHandler WarningHandler = func(w error) { log.Printf("featurelab: warning: %v", w) }
)

// SetWarningHandler replaces the process-wide warning handler and returns the
// previous one. A nil handler discards warnings.
//
//	prev := errors.SetWarningHandler(func(w error) { got = w })
//	defer errors.SetWarningHandler(prev)
func SetWarningHandler(handler WarningHandler) WarningHandler {
	warningMu.Lock()
	defer warningMu.Unlock()
	prev := warningHandler
	warningHandler = handler
	return prev
}

// Warn は警告をハンドラへ渡します。処理は止めません。
func Warn(w error) {
	warningMu.Lock()
	h := warningHandler
	warningMu.Unlock()
	if h != nil {
		h(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning は列の型が暗黙的に変換された場合に発生する警告です。
// 例えばJSON入力で数値と文字列が混在する列は文字列列として読み込まれます。
type DataConversionWarning struct {
	Column   string
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("column %q converted from %s to %s. Reason: %s", w.Column, w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column, from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、正解ラベルが単一クラスしか含まない場合のAUCなど。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `PredictProba` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("featurelab: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0: 行, 1: 列（特徴量）
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("featurelab: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// 二値でないラベル、空の特徴量リスト、存在しない特徴量などを示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("featurelab: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// SchemaMismatchError は訓練データとテストデータの列構成が一致しない場合のエラーです。
// OnlyLeft/OnlyRight には片方にしか存在しない列名がソート済みで入ります。
type SchemaMismatchError struct {
	Op        string
	OnlyLeft  []string
	OnlyRight []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("featurelab: %s: train and test sets must have the same columns (only in train: [%s], only in test: [%s])",
		e.Op, strings.Join(e.OnlyLeft, ","), strings.Join(e.OnlyRight, ","))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Strs("only_train", e.OnlyLeft).
		Strs("only_test", e.OnlyRight).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError は2つの列集合を比較してSchemaMismatchErrorを作成します。
func NewSchemaMismatchError(op string, left, right []string) error {
	inLeft := make(map[string]bool, len(left))
	for _, c := range left {
		inLeft[c] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, c := range right {
		inRight[c] = true
	}
	e := &SchemaMismatchError{Op: op}
	for _, c := range left {
		if !inRight[c] {
			e.OnlyLeft = append(e.OnlyLeft, c)
		}
	}
	for _, c := range right {
		if !inLeft[c] {
			e.OnlyRight = append(e.OnlyRight, c)
		}
	}
	sort.Strings(e.OnlyLeft)
	sort.Strings(e.OnlyRight)
	return errors.WithStack(e)
}

// UnseenCategoryError は学習時に存在しなかったカテゴリ値が変換時に現れた場合のエラーです。
type UnseenCategoryError struct {
	Op      string
	Feature string
	Value   string
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("featurelab: %s: feature '%s' has category %q that was not seen during fitting", e.Op, e.Feature, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnseenCategoryError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("feature", e.Feature).
		Str("value", e.Value).
		Str("type", "UnseenCategoryError")
}

// NewUnseenCategoryError は新しいUnseenCategoryErrorを作成し、スタックトレースを付与します。
func NewUnseenCategoryError(op, feature, value string) error {
	return errors.WithStack(&UnseenCategoryError{Op: op, Feature: feature, Value: value})
}

// NumericDomainError はlog(0)やゼロ除算など、数値の定義域外で計算しようとした場合のエラーです。
type NumericDomainError struct {
	Op      string
	Feature string
	Reason  string
	Value   float64
}

func (e *NumericDomainError) Error() string {
	if e.Feature != "" {
		return fmt.Sprintf("featurelab: %s: numeric domain error for '%s': %s (value: %g)", e.Op, e.Feature, e.Reason, e.Value)
	}
	return fmt.Sprintf("featurelab: %s: numeric domain error: %s (value: %g)", e.Op, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericDomainError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("feature", e.Feature).
		Str("reason", e.Reason).
		Float64("value", e.Value).
		Str("type", "NumericDomainError")
}

// NewNumericDomainError は新しいNumericDomainErrorを作成し、スタックトレースを付与します。
func NewNumericDomainError(op, feature, reason string, value float64) error {
	return errors.WithStack(&NumericDomainError{Op: op, Feature: feature, Reason: reason, Value: value})
}

// FitError は交差検証の特定foldでモデルの学習・予測に失敗した場合のエラーです。
// リトライは行わず、そのまま呼び出し元へ伝播させます。
type FitError struct {
	Op   string
	Fold int
	Err  error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("featurelab: %s: fold %d failed: %v", e.Op, e.Fold, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("fold", e.Fold).
		Str("cause", fmt.Sprint(e.Err)).
		Str("type", "FitError")
}

// NewFitError は新しいFitErrorを作成し、スタックトレースを付与します。
func NewFitError(op string, fold int, err error) error {
	return errors.WithStack(&FitError{Op: op, Fold: fold, Err: err})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("featurelab: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("featurelab: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("featurelab: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrColumnNotFound は存在しない列が指定された場合のエラーです。
	ErrColumnNotFound = New("column not found")
)
