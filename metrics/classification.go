// Package metrics は分類モデルの評価指標を提供する
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

// LogLossEps は log(0) を避けるための確率のクリップ幅
const LogLossEps = 1e-15

// AUC はラベル {0, 1} に対する ROC 曲線下面積を計算する
//
// yTrue が単一クラスしか含まない場合は UndefinedMetricWarning を出して 0.5 を返す。
// 交差検証のように未定義を失敗として扱いたい場合は ROCAUC を使う。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	truth, score, err := vectors("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := requireBinaryLabels("AUC", truth); err != nil {
		return 0, err
	}

	auc, err := ROCAUC(truth, score, 1)
	if err != nil {
		var domainErr *errors.NumericDomainError
		if errors.As(err, &domainErr) {
			errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
			return 0.5, nil
		}
		return 0, err
	}
	return auc, nil
}

// AUCMatrix は行列入力の先頭列に対して AUC を計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	truth, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	score, err := firstColumn("AUCMatrix", yScore)
	if err != nil {
		return 0, err
	}
	return AUC(truth, score)
}

// ROCAUC computes the area under the ROC curve treating rows whose label
// equals positive as the positive class. Ties in yScore are handled by
// grouping equal scores into one threshold, so the result matches the
// Mann-Whitney statistic.
//
// A vector with only one class is a NumericDomainError.
func ROCAUC(yTrue, yScore []float64, positive float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("ROCAUC", "empty vector")
	}
	if len(yScore) != n {
		return 0, errors.NewDimensionError("ROCAUC", n, len(yScore), 0)
	}

	score := make([]float64, n)
	classes := make([]bool, n)
	nPos := 0
	for i := range yTrue {
		if math.IsNaN(yScore[i]) {
			return 0, errors.NewNumericDomainError("ROCAUC", "y_score", "NaN score", yScore[i])
		}
		score[i] = yScore[i]
		classes[i] = yTrue[i] == positive
		if classes[i] {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		return 0, errors.NewNumericDomainError("ROCAUC", "y_true",
			"ROC AUC is undefined when only one class is present", positive)
	}

	stat.SortWeightedLabeled(score, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, score, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// BinaryLogLoss はラベル {0, 1} と陽性確率から二値クロスエントロピーを計算する
// 確率は [eps, 1-eps] にクリップされる
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	truth, prob, err := vectors("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := requireBinaryLabels("BinaryLogLoss", truth); err != nil {
		return 0, err
	}

	var sum float64
	for i, t := range truth {
		p := errors.ClipProbability(prob[i], LogLossEps)
		sum -= t*math.Log(p) + (1-t)*math.Log(1-p)
	}
	return sum / float64(len(truth)), nil
}

// LogLoss は多クラスのクロスエントロピーを計算する
//
// proba は n×k 行列で、列 j がクラス classes[j] の確率に対応する。
// 各行はクリップ後に和が1になるよう正規化される。yTrue に classes に無い
// ラベルがある場合はエラー。
func LogLoss(yTrue []float64, proba mat.Matrix, classes []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty vector")
	}
	if proba == nil {
		return 0, errors.NewValueError("LogLoss", "nil probability matrix")
	}
	rows, cols := proba.Dims()
	if rows != n {
		return 0, errors.NewDimensionError("LogLoss", n, rows, 0)
	}
	if cols != len(classes) {
		return 0, errors.NewDimensionError("LogLoss", len(classes), cols, 1)
	}

	column := make(map[float64]int, len(classes))
	for j, c := range classes {
		column[c] = j
	}

	row := make([]float64, cols)
	var sum float64
	for i, label := range yTrue {
		j, ok := column[label]
		if !ok {
			return 0, errors.NewValidationError("y_true", "label not among the predicted classes", label)
		}
		var total float64
		for c := 0; c < cols; c++ {
			row[c] = errors.ClipProbability(proba.At(i, c), LogLossEps)
			total += row[c]
		}
		sum -= math.Log(row[j] / total)
	}
	return sum / float64(n), nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	truth, pred, err := vectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth)), nil
}

// ClassificationError は誤分類率 (1 - Accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// PositiveColumn returns column j of proba for the largest class, which is
// the positive class for AUC.
func PositiveColumn(proba mat.Matrix, classes []float64) ([]float64, float64, error) {
	if len(classes) != 2 {
		return nil, 0, errors.NewValidationError("classes", "AUC requires exactly two classes", len(classes))
	}
	j := 0
	if classes[1] > classes[0] {
		j = 1
	}
	rows, cols := proba.Dims()
	if cols != 2 {
		return nil, 0, errors.NewDimensionError("PositiveColumn", 2, cols, 1)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = proba.At(i, j)
	}
	return out, classes[j], nil
}

func vectors(op string, a, b *mat.VecDense) ([]float64, []float64, error) {
	if a == nil || b == nil {
		return nil, nil, errors.NewValueError(op, "nil vector")
	}
	n := a.Len()
	if n == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if b.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, b.Len(), 0)
	}
	return mat.Col(nil, 0, a), mat.Col(nil, 0, b), nil
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	if dense, ok := m.(*mat.Dense); ok && dense.IsEmpty() {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

func requireBinaryLabels(op string, y []float64) error {
	for _, v := range y {
		if v != 0 && v != 1 {
			return errors.NewValidationError("y_true", op+" requires labels in {0, 1}", v)
		}
	}
	return nil
}

// UniqueSorted returns the distinct values of y in ascending order.
func UniqueSorted(y []float64) []float64 {
	seen := make(map[float64]struct{}, 8)
	out := make([]float64, 0, 8)
	for _, v := range y {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
