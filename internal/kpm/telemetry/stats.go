package telemetry

// SampleStats is a running min/max/sum over a stream of samples.
// The zero value is empty and ready to use.
type SampleStats struct {
	Count uint32
	Sum   float64
	Min   float64
	Max   float64
}

// Update adds one sample.
func (s *SampleStats) Update(v float64) {
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}

	if s.Count == 0 || v > s.Max {
		s.Max = v
	}

	s.Count++
	s.Sum += v
}

// Merge folds o into s.
func (s *SampleStats) Merge(o SampleStats) {
	if o.Count == 0 {
		return
	}

	if s.Count == 0 {
		*s = o

		return
	}

	if o.Min < s.Min {
		s.Min = o.Min
	}

	if o.Max > s.Max {
		s.Max = o.Max
	}

	s.Count += o.Count
	s.Sum += o.Sum
}

// Mean returns the arithmetic mean, or 0 when empty.
func (s SampleStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}

	return s.Sum / float64(s.Count)
}

// Empty reports whether no sample was recorded.
func (s SampleStats) Empty() bool {
	return s.Count == 0
}
