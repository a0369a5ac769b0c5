// Package preprocessing は特徴量エンジニアリングの変換器を提供する
//
// ラベルエンコーディング、低カーディナリティのクラスタリング、
// WOE (Weight of Evidence) 変換、One-Hot、標準化を含む。
package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

// LabelEncoder はカテゴリラベルを 0..k-1 の整数コードに変換する
//
// コードはソート済みのカテゴリ順に割り当てられるため、同じ入力からは
// 常に同じコードが得られる。
type LabelEncoder struct {
	State *model.StateManager

	// ClassList はコード順のカテゴリ
	ClassList []string
	Codes     map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{State: model.NewStateManager()}
}

// Fit はラベルの集合からマッピングを作る
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{}, 8)
	classes := make([]string, 0, 8)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)

	e.ClassList = classes
	e.Codes = make(map[string]int, len(classes))
	for i, c := range classes {
		e.Codes[c] = i
	}
	e.State.SetDimensions(1, len(labels))
	e.State.SetFitted()
	return nil
}

// Transform はラベルをコードに変換する。未知のラベルは UnseenCategoryError
func (e *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if err := e.State.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		code, ok := e.Codes[l]
		if !ok {
			return nil, errors.NewUnseenCategoryError("LabelEncoder.Transform", "label", l)
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (e *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform はコードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if err := e.State.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(e.ClassList) {
			return nil, errors.NewValidationError("code", "not a code of this encoder", c)
		}
		out[i] = e.ClassList[k]
	}
	return out, nil
}

// Classes returns the categories in code order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.ClassList...)
}

// EncodeColumn は文字列列 name を学習し、数値コード列で置き換える
//
// null のセルは学習に使わず NaN のまま残るので、テスト行のラベルが
// 欠損していても TrainMask がそのまま使える。
func (e *LabelEncoder) EncodeColumn(t *dataset.Table, name string) error {
	col, err := t.Column(name)
	if err != nil {
		return err
	}
	if col.Kind != dataset.String {
		return errors.NewValidationError(name, "label column must be text to encode", col.Kind.String())
	}

	present := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if !col.IsNull(i) {
			present = append(present, col.Str[i])
		}
	}
	if err := e.Fit(present); err != nil {
		return err
	}

	codes := make([]float64, col.Len())
	for i := range codes {
		if col.IsNull(i) {
			codes[i] = math.NaN()
			continue
		}
		codes[i] = float64(e.Codes[col.Str[i]])
	}
	return t.SetNumeric(name, codes)
}
