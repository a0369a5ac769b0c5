// Package featurelab is a feature-engineering and model-tuning toolkit for
// tabular classification data, built on gonum.
//
// A run merges a labelled train table with an unlabelled test table, derives
// count features from multi-valued string columns, clusters high-cardinality
// categories into coarser signatures, replaces categorical values with their
// weight of evidence, greedily selects a feature subset under stratified
// cross-validation, and finally tunes a gradient-boosting classifier with a
// TPE search.
//
// # Quick Start
//
//	train, err := dataset.LoadFile("train.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	y, _ := train.Numeric("target")
//
//	enc := preprocessing.NewWOEEncoder(preprocessing.WithSingularity(
//	    preprocessing.LaplaceSmoothing(0.5)))
//	if err := enc.Fit(train, y, preprocessing.AllFeatures); err != nil {
//	    log.Fatal(err)
//	}
//	if err := enc.Transform(train); err != nil {
//	    log.Fatal(err)
//	}
//
//	X, _ := train.Matrix([]string{"genres", "cities"})
//	yv, _ := train.Vector("target")
//	res, err := model_selection.GreedyFeatureSearch(X, yv,
//	    pipeline.NewScaledClassifier(linear_model.NewLogisticRegression()))
//
// The same flow is available from the command line:
//
//	featurelab -config configs/featurelab.yaml all
//
// # Packages
//
//   - dataset: column table, CSV/JSON loaders, Feather and Parquet checkpoints
//   - features: instance counts, watch time, frequency and membership flags
//   - preprocessing: clustering, WOE/IV, one-hot, label encoding, scaling
//   - sklearn/model_selection: k-fold splitters, CV loop, greedy selection
//   - sklearn/linear_model: logistic regression
//   - sklearn/ensemble: gradient-boosted trees
//   - hyperopt: search spaces and the goptuna-backed tuner
//   - metrics: AUC, log-loss, accuracy
//   - report: IV tables and selection/tuning charts
//   - core/model: estimator interfaces, fit state, gob persistence
//   - core/parallel: chunked parallel loops
//   - pkg/errors, pkg/log: structured errors and logging
package featurelab
