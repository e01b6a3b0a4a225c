package gutter

// Streak is the longest run of hits in one column and the row it ended on.
type Streak struct {
	Length int
	EndRow int
}

// Score is the outcome of scoring a sample at one tolerance.
type Score struct {
	Column    int
	Streak    Streak
	TotalHits int
	Tolerance int
}

// Detection is the accepted score plus how many tolerance reductions it took.
type Detection struct {
	Score
	Reductions int
}

// Detector picks the gutter column out of a complete sample.
type Detector struct {
	cfg  Config
	sink Sink
}

// NewDetector creates a detector. sink may be nil.
func NewDetector(cfg Config, sink Sink) *Detector {
	return &Detector{cfg: cfg, sink: sinkOrNop(sink)}
}

// Detect scores the sample starting at tolerance and lowers the tolerance by
// ToleranceStep while the total hit count stays above HitCap. The sample is
// re-scored, never resampled.
func (d *Detector) Detect(sample ColumnSample, tolerance int) (Detection, error) {
	d.sink.Info("detecting column", map[string]any{
		"columns": len(sample.Columns), "tolerance": tolerance,
	})

	for reductions := 0; ; reductions++ {
		score := d.Score(sample, tolerance)
		d.sink.Info("longest streak", map[string]any{
			"streak": score.Streak.Length, "column": score.Column, "end_row": score.Streak.EndRow,
		})

		if score.TotalHits <= d.cfg.HitCap {
			if score.Streak.Length == 0 {
				return Detection{}, &NoStreakError{Tolerance: tolerance, Columns: len(sample.Columns)}
			}
			d.sink.Info("total hits", map[string]any{"hits": score.TotalHits, "tolerance": tolerance})
			return Detection{Score: score, Reductions: reductions}, nil
		}

		d.sink.Warn("too many hits", map[string]any{"hits": score.TotalHits, "tolerance": tolerance})
		next := tolerance - d.cfg.ToleranceStep
		if reductions >= d.cfg.MaxToleranceSteps || d.cfg.ToleranceStep <= 0 || next <= 0 {
			return Detection{}, &ToleranceSaturationError{
				Tolerance:  tolerance,
				Hits:       score.TotalHits,
				Cap:        d.cfg.HitCap,
				Reductions: reductions,
			}
		}
		tolerance = next
	}
}

// Score finds, at a fixed tolerance, the column with the longest streak and
// the total hit count. Ties keep the lowest column index.
func (d *Detector) Score(sample ColumnSample, tolerance int) Score {
	best := Score{Column: -1, Tolerance: tolerance}
	for _, col := range sample.Columns {
		var longest Streak
		streak := 0
		for _, p := range col.Pixels {
			if p.Intensity < tolerance {
				best.TotalHits++
				streak++
				if streak > longest.Length {
					longest = Streak{Length: streak, EndRow: p.Row}
				}
				continue
			}
			if streak > d.cfg.StreakAnnounce {
				d.sink.Info("breaking streak", map[string]any{
					"streak": streak, "column": col.Index, "row": p.Row,
				})
			}
			streak = 0
		}
		if best.Column < 0 || longest.Length > best.Streak.Length {
			best.Column = col.Index
			best.Streak = longest
		}
	}
	return best
}
