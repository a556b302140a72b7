package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/revindex/internal/changedpath"
	"github.com/hupe1980/revindex/model"
)

// LevelStats describes one commit level.
type LevelStats struct {
	// Name is the segment file name. It is empty for the pending level of a
	// mutable index.
	Name       string
	NumCommits uint32
}

// Stats summarizes an index.
type Stats struct {
	NumCommits          uint32
	NumMerges           uint32
	MaxGenerationNumber uint32
	NumHeads            uint32
	NumChanges          uint32
	// Levels lists the commit levels, oldest first.
	Levels []LevelStats
	// ChangedPathRange is the covered position range, nil when the
	// changed-path index is disabled.
	ChangedPathRange *model.PositionRange
	// ChangedPathLevels lists the changed-path levels, oldest first.
	ChangedPathLevels []changedpath.LevelStats
}

// graphStats fills the commit counters and levels of s.
func (v *view) graphStats(s *Stats) {
	n := v.NumCommits()
	s.NumCommits = n

	hasChild := roaring.New()
	changes := make(map[string]struct{})
	for pos := model.Position(0); uint32(pos) < n; pos++ {
		parents := v.Parents(pos)
		if len(parents) > 1 {
			s.NumMerges++
		}
		for _, p := range parents {
			hasChild.Add(uint32(p))
		}
		s.MaxGenerationNumber = max(s.MaxGenerationNumber, v.Generation(pos))
		changes[string(v.ChangeID(pos))] = struct{}{}
	}
	s.NumHeads = n - uint32(hasChild.GetCardinality())
	s.NumChanges = uint32(len(changes))

	for _, f := range v.files {
		s.Levels = append(s.Levels, LevelStats{Name: f.Name(), NumCommits: f.NumLocalCommits()})
	}
	if v.mutable != nil && v.mutable.NumLocalCommits() > 0 {
		s.Levels = append(s.Levels, LevelStats{NumCommits: v.mutable.NumLocalCommits()})
	}
}
