package features

import (
	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// Spec describes which derived columns Build adds to a table.
type Spec struct {
	// Counts adds "<col>_count" token counts.
	Counts []string
	// WatchTime adds "<col>_watch_time" sums of counts.
	WatchTime []string
	// Frequency adds "<col>_freq" value frequencies.
	Frequency []string
	// Flags adds "<col>_flag" membership flags keyed by column.
	Flags map[string][]string
}

// Build adds every derived column of spec to t and returns the new column
// names in the order added.
func Build(t *dataset.Table, spec Spec) ([]string, error) {
	var added []string
	add := func(name string, values []float64) error {
		if err := t.SetNumeric(name, values); err != nil {
			return err
		}
		added = append(added, name)
		return nil
	}

	for _, name := range spec.Counts {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		values, err := CountInstances(col)
		if err != nil {
			return nil, err
		}
		if err := add(name+"_count", values); err != nil {
			return nil, err
		}
	}
	for _, name := range spec.WatchTime {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		values, err := WatchTime(col)
		if err != nil {
			return nil, err
		}
		if err := add(name+"_watch_time", values); err != nil {
			return nil, err
		}
	}
	for _, name := range spec.Frequency {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := add(name+"_freq", FrequencyCount(col)); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(spec.Flags) {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := add(name+"_flag", MembershipFlag(col, spec.Flags[name])); err != nil {
			return nil, err
		}
	}

	log.GetLoggerWithName("features").Info("features built", log.FeaturesKey, len(added))
	return added, nil
}
