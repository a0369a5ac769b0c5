// Package model_selection は交差検証、データ分割、特徴量選択を提供する
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// Splitter produces cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold is one train/held-out partition of row indices.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a new k-fold splitter. nSplits below 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split assigns consecutive (optionally shuffled) blocks of rows to folds.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	n, _ := X.Dims()
	if n < kf.NSplits {
		return nil, errors.NewValidationError("n_splits", "cannot be greater than the number of samples", kf.NSplits)
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	assign := make([]int, n)
	start := 0
	for f := 0; f < kf.NSplits; f++ {
		size := n / kf.NSplits
		if f < n%kf.NSplits {
			size++
		}
		for _, idx := range indices[start : start+size] {
			assign[idx] = f
		}
		start += size
	}
	return foldsFromAssignment(assign, kf.NSplits), nil
}

// StratifiedKFold implements stratified k-fold cross-validation
//
// 各クラスの行を順に fold へ配り、クラスごとの fold 内件数を
// floor(n_c/k) か ceil(n_c/k) に保つ。端数はクラスをまたいで
// 次の fold から続けて配るため、fold の大きさも偏らない。
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

// Split generates stratified train/test indices for each fold. Classes are
// visited in ascending label order so the result depends only on the seed.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	n, _ := X.Dims()
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "labels are required")
	}
	if yr, _ := y.Dims(); yr != n {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", n, yr, 0)
	}
	if n < skf.NSplits {
		return nil, errors.NewValidationError("n_splits", "cannot be greater than the number of samples", skf.NSplits)
	}

	byClass := groupByClass(y)
	labels := sortedLabels(byClass)
	for _, label := range labels {
		if len(byClass[label]) < skf.NSplits {
			log.GetLoggerWithName("model_selection").Warn("class has fewer members than folds",
				"label", label, "members", len(byClass[label]), log.NFoldsKey, skf.NSplits)
		}
	}

	r := newRand(skf.RandomSeed)
	assign := make([]int, n)
	next := 0
	for _, label := range labels {
		indices := byClass[label]
		if skf.Shuffle {
			r.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		}
		for _, idx := range indices {
			assign[idx] = next
			next = (next + 1) % skf.NSplits
		}
	}
	return foldsFromAssignment(assign, skf.NSplits), nil
}

func groupByClass(y mat.Matrix) map[float64][]int {
	n, _ := y.Dims()
	byClass := make(map[float64][]int)
	for i := 0; i < n; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	return byClass
}

func sortedLabels(byClass map[float64][]int) []float64 {
	labels := make([]float64, 0, len(byClass))
	for l := range byClass {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels
}

// foldsFromAssignment builds folds with indices in ascending row order.
func foldsFromAssignment(assign []int, k int) []Fold {
	folds := make([]Fold, k)
	for idx, f := range assign {
		for g := range folds {
			if g == f {
				folds[g].TestIndices = append(folds[g].TestIndices, idx)
			} else {
				folds[g].TrainIndices = append(folds[g].TrainIndices, idx)
			}
		}
	}
	return folds
}

// TrainTestSplit shuffles the rows with seed and holds out a testSize
// fraction of them. With stratify the held-out rows keep the class
// proportions of y, largest remainders first.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64, stratify bool) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	n, _ := X.Dims()
	if yr, _ := y.Dims(); yr != n {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, yr, 0)
	}
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "leaves an empty train or test set", testSize)
	}

	r := newRand(seed)
	var test []int
	if stratify {
		test = stratifiedSample(y, nTest, r)
	} else {
		perm := r.Perm(n)
		test = perm[:nTest]
	}

	isTest := make([]bool, n)
	for _, idx := range test {
		isTest[idx] = true
	}
	var trainIdx, testIdx []int
	for i := 0; i < n; i++ {
		if isTest[i] {
			testIdx = append(testIdx, i)
		} else {
			trainIdx = append(trainIdx, i)
		}
	}

	XTrain, yTrain = Subset(X, y, trainIdx)
	XTest, yTest = Subset(X, y, testIdx)
	return XTrain, XTest, yTrain, yTest, nil
}

func stratifiedSample(y mat.Matrix, nTest int, r *rand.Rand) []int {
	n, _ := y.Dims()
	byClass := groupByClass(y)
	labels := sortedLabels(byClass)

	quota := make([]int, len(labels))
	type rem struct {
		class int
		frac  float64
	}
	rems := make([]rem, len(labels))
	assigned := 0
	for c, label := range labels {
		exact := float64(len(byClass[label])) * float64(nTest) / float64(n)
		quota[c] = int(math.Floor(exact))
		assigned += quota[c]
		rems[c] = rem{class: c, frac: exact - float64(quota[c])}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < nTest && i < len(rems); i++ {
		quota[rems[i].class]++
		assigned++
	}

	var out []int
	for c, label := range labels {
		indices := append([]int(nil), byClass[label]...)
		r.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		out = append(out, indices[:quota[c]]...)
	}
	return out
}

// Subset copies the given rows of X and y into new matrices.
func Subset(X, y mat.Matrix, rows []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	_, yCols := y.Dims()
	xSub := mat.NewDense(len(rows), xCols, nil)
	ySub := mat.NewDense(len(rows), yCols, nil)
	for i, idx := range rows {
		for j := 0; j < xCols; j++ {
			xSub.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySub.Set(i, j, y.At(idx, j))
		}
	}
	return xSub, ySub
}

// Columns copies the given columns of X, in order, into a new matrix.
func Columns(X mat.Matrix, cols []int) *mat.Dense {
	n, _ := X.Dims()
	out := mat.NewDense(n, len(cols), nil)
	col := make([]float64, n)
	for j, c := range cols {
		mat.Col(col, c, X)
		out.SetCol(j, col)
	}
	return out
}
