package model_selection

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// DefaultSelectionSeed is the CV seed used by GreedyFeatureSearch.
const DefaultSelectionSeed = 12313

// SelectionStep records the feature added in one round and the mean CV
// score it reached.
type SelectionStep struct {
	Score   float64
	Feature int
}

// CandidateScore is the mean CV score of one candidate in one round.
type CandidateScore struct {
	Feature int
	Score   float64
}

// SelectionResult is the outcome of a greedy forward search.
type SelectionResult struct {
	// Selected is the final feature set in ascending order.
	Selected []int
	// History has one entry per completed round.
	History []SelectionStep
	// Rounds holds every candidate score, one slice per round.
	Rounds [][]CandidateScore
	// Exhausted is true when the search ran out of candidates while
	// still improving. The last added feature is then kept.
	Exhausted bool
}

type greedyConfig struct {
	seed   int64
	metric Metric
	logger log.Logger
}

// GreedyOption configures GreedyFeatureSearch.
type GreedyOption func(*greedyConfig)

// WithSelectionSeed sets the CV seed.
func WithSelectionSeed(seed int64) GreedyOption {
	return func(c *greedyConfig) { c.seed = seed }
}

// WithSelectionMetric scores candidates with metric instead of AUC. For
// loss metrics a lower mean counts as an improvement.
func WithSelectionMetric(metric Metric) GreedyOption {
	return func(c *greedyConfig) { c.metric = metric }
}

// WithSelectionLogger routes progress logs to logger.
func WithSelectionLogger(logger log.Logger) GreedyOption {
	return func(c *greedyConfig) { c.logger = logger }
}

// GreedyFeatureSearch grows a feature subset one column at a time.
//
// Each round scores goodFeatures ∪ {f} for every unused column f with
// CVLoop and adds the candidate with the largest (score, index) pair, so a
// tie goes to the higher column index. The search continues while fewer
// than two rounds are recorded or the newest round improved on the one
// before. The feature added by the final, non-improving round is removed
// before returning.
func GreedyFeatureSearch(X, y mat.Matrix, clf model.Classifier, opts ...GreedyOption) (*SelectionResult, error) {
	cfg := greedyConfig{
		seed:   DefaultSelectionSeed,
		metric: MetricAUC,
		logger: log.GetLoggerWithName("model_selection"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	_, p := X.Dims()
	if p == 0 {
		return nil, errors.ErrEmptyData
	}
	// key は大きいほど良い値に揃える
	key := func(score float64) float64 {
		if cfg.metric.HigherIsBetter() {
			return score
		}
		return -score
	}

	res := &SelectionResult{}
	used := make([]bool, p)
	var good []int

	improving := func() bool {
		h := res.History
		return len(h) < 2 || key(h[len(h)-1].Score) > key(h[len(h)-2].Score)
	}

	for round := 0; improving(); round++ {
		base := append([]int(nil), good...)
		sort.Ints(base)

		var scores []CandidateScore
		for f := 0; f < p; f++ {
			if used[f] {
				continue
			}
			feats := append(append([]int(nil), base...), f)
			foldScores, err := CVLoop(Columns(X, feats), y, clf, cfg.metric, cfg.seed)
			if err != nil {
				return nil, errors.Wrapf(err, "round %d feature %d", round, f)
			}
			mean := stat.Mean(foldScores, nil)
			scores = append(scores, CandidateScore{Feature: f, Score: mean})
			cfg.logger.Info("candidate evaluated",
				log.RoundKey, round,
				log.FeatureKey, f,
				log.MetricKey, cfg.metric.String(),
				log.ScoreKey, mean,
			)
		}
		if len(scores) == 0 {
			res.Exhausted = true
			break
		}
		res.Rounds = append(res.Rounds, scores)

		best := scores[0]
		for _, s := range scores[1:] {
			// 候補は昇順なので >= で同点のときは大きい index が勝つ
			if key(s.Score) >= key(best.Score) {
				best = s
			}
		}
		used[best.Feature] = true
		good = append(good, best.Feature)
		res.History = append(res.History, SelectionStep{Score: best.Score, Feature: best.Feature})

		current := append([]int(nil), good...)
		sort.Ints(current)
		cfg.logger.Info("feature added",
			log.RoundKey, round,
			log.FeatureKey, best.Feature,
			log.ScoreKey, best.Score,
			log.SelectedKey, current,
		)
	}

	if !res.Exhausted {
		last := res.History[len(res.History)-1].Feature
		used[last] = false
	}
	for f := 0; f < p; f++ {
		if used[f] {
			res.Selected = append(res.Selected, f)
		}
	}
	if res.Selected == nil {
		res.Selected = []int{}
	}

	cfg.logger.Info("selection finished",
		log.SelectedKey, res.Selected,
		"rounds", len(res.History),
	)
	return res, nil
}
