package matcher

import (
	"math"
	"sort"
)

// Default matching parameters, used when the config leaves them zero.
const (
	DefaultTolerance       = 0.6
	DefaultAmbiguityMargin = 0.05
)

// Config holds the matching thresholds.
type Config struct {
	// Tolerance is the maximum distance for a candidate match to be valid.
	Tolerance float64
	// AmbiguityMargin is the minimum distance gap required both to the
	// runner-up student of a face and between two faces competing for the
	// same student. Closer than this, the match is refused rather than
	// guessed.
	AmbiguityMargin float64
}

func (c Config) withDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.AmbiguityMargin <= 0 {
		c.AmbiguityMargin = DefaultAmbiguityMargin
	}
	return c
}

// Attempt is the evaluation of one detected face against the template set.
type Attempt struct {
	FaceIndex int
	StudentID string  // best-distance candidate, empty if none
	Distance  float64 // distance to the best candidate
	Margin    float64 // gap to the runner-up student, +Inf with a single candidate
}

// Assignment is one face resolved to a student.
type Assignment struct {
	FaceIndex  int
	StudentID  string
	Distance   float64
	Confidence float64 // 1 - distance/tolerance, clamped to [0,1]
}

// Result is the outcome of matching all faces of one photo.
type Result struct {
	Assignments []Assignment // ordered by face index
	Unresolved  int          // faces without an assignment
}

// Match assigns each detected face embedding to the closest enrolled student
// or leaves it unresolved. templates maps student ID to that student's
// template set; the distance of a face to a student is the minimum over the
// student's templates. All vectors are L2-normalized before comparison.
//
// Assignment is global rather than greedy-per-face: candidate attempts are
// sorted by ascending distance and each student is taken by the most
// confident face. A losing face becomes unresolved, and if it trails the
// winner by less than the ambiguity margin the winner is revoked too, so a
// student is never claimed on a coin flip. An empty template set resolves
// nothing and is not an error.
func Match(templates map[string][][]float32, faces [][]float32, cfg Config) Result {
	cfg = cfg.withDefaults()

	students := make([]string, 0, len(templates))
	normalized := make(map[string][][]float32, len(templates))
	for id, set := range templates {
		if len(set) == 0 {
			continue
		}
		norm := make([][]float32, len(set))
		for i, tpl := range set {
			norm[i] = Normalize(tpl)
		}
		students = append(students, id)
		normalized[id] = norm
	}
	// Fixed iteration order keeps matching deterministic across runs.
	sort.Strings(students)

	attempts := make([]Attempt, len(faces))
	for i, face := range faces {
		attempts[i] = evaluate(i, Normalize(face), students, normalized)
	}

	eligible := make([]int, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		if a.StudentID == "" || a.Distance > cfg.Tolerance || a.Margin < cfg.AmbiguityMargin {
			continue
		}
		eligible = append(eligible, i)
	}
	sort.SliceStable(eligible, func(x, y int) bool {
		return attempts[eligible[x]].Distance < attempts[eligible[y]].Distance
	})

	// Best-distance-first claim per student. A second face within the
	// ambiguity margin of the winner revokes the claim entirely.
	winners := make(map[string]int, len(eligible))
	contested := make(map[string]bool)
	for _, idx := range eligible {
		a := &attempts[idx]
		if contested[a.StudentID] {
			continue
		}
		w, taken := winners[a.StudentID]
		if !taken {
			winners[a.StudentID] = idx
			continue
		}
		if a.Distance-attempts[w].Distance < cfg.AmbiguityMargin {
			delete(winners, a.StudentID)
			contested[a.StudentID] = true
		}
	}

	assignments := make([]Assignment, 0, len(winners))
	for studentID, idx := range winners {
		a := attempts[idx]
		assignments = append(assignments, Assignment{
			FaceIndex:  a.FaceIndex,
			StudentID:  studentID,
			Distance:   a.Distance,
			Confidence: confidence(a.Distance, cfg.Tolerance),
		})
	}
	sort.Slice(assignments, func(x, y int) bool {
		return assignments[x].FaceIndex < assignments[y].FaceIndex
	})

	return Result{
		Assignments: assignments,
		Unresolved:  len(faces) - len(assignments),
	}
}

// evaluate computes the best and runner-up candidates for one face.
func evaluate(faceIndex int, face []float32, students []string, templates map[string][][]float32) Attempt {
	best := math.Inf(1)
	second := math.Inf(1)
	bestID := ""

	for _, id := range students {
		d := math.Inf(1)
		for _, tpl := range templates[id] {
			if td := EuclideanDistance(face, tpl); td < d {
				d = td
			}
		}
		switch {
		case d < best:
			second = best
			best = d
			bestID = id
		case d < second:
			second = d
		}
	}

	return Attempt{
		FaceIndex: faceIndex,
		StudentID: bestID,
		Distance:  best,
		Margin:    second - best,
	}
}

func confidence(distance, tolerance float64) float64 {
	c := 1 - distance/tolerance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
