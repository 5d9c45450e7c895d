package images

// Failure is one item that did not complete.
type Failure struct {
	Kind     Kind   `yaml:"kind"`
	LegacyID string `yaml:"legacy_id"`
	Dest     string `yaml:"dest"`
	Stage    string `yaml:"stage"`
	Error    string `yaml:"error"`
}

// Summary totals a run by terminal state.
type Summary struct {
	Total      int       `yaml:"total"`
	Dropped    int       `yaml:"dropped"`
	Succeeded  int       `yaml:"succeeded"`
	Skipped    int       `yaml:"skipped"`
	Failed     int       `yaml:"failed"`
	Pending    int       `yaml:"pending,omitempty"`
	Reconciled int       `yaml:"reconciled"`
	Failures   []Failure `yaml:"failures,omitempty"`
}

// HasFailures reports whether any transfer or reconciliation write failed.
func (s *Summary) HasFailures() bool {
	return len(s.Failures) > 0
}

func (s *Summary) addFailure(item *WorkItem, stage string, err error) {
	s.Failures = append(s.Failures, Failure{
		Kind:     item.Kind,
		LegacyID: item.LegacyID,
		Dest:     item.DestPath,
		Stage:    stage,
		Error:    err.Error(),
	})
}

// collect tallies item states. Reconciliation failures were added as they
// happened.
func (s *Summary) collect(items []*WorkItem) {
	s.Total = len(items)
	for _, item := range items {
		switch item.State {
		case Succeeded:
			s.Succeeded++
		case Skipped:
			s.Skipped++
		case Failed:
			s.Failed++
			s.addFailure(item, "transfer", item.Err)
		default:
			s.Pending++
		}
	}
}
