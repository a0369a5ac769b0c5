// Package model defines the contracts shared by the estimators and
// transformers in featurelab, plus fitted-state bookkeeping and persistence.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Classifier is the model contract used by cross-validation, feature
// selection and tuning.
//
// Fit must train from scratch on every call so that the same instance can be
// reused across folds. Fitting on fewer than two classes is a ValidationError.
type Classifier interface {
	Fitter

	// PredictProba returns an n×k matrix whose columns follow Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted distinct labels seen during Fit.
	Classes() []float64
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is implemented by models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
