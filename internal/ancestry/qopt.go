package ancestry

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Populations are the reference populations of the humanOrigins 7 world
// populations panel, in panel order.
var Populations = []string{"French", "Han", "Chukchi", "Karitiana", "Papuan", "Sindhi", "YRI"}

// Prediction maps population labels to admixture proportions.
type Prediction map[string]float64

// ZeroPrediction returns a prediction of 0 for every reference population.
func ZeroPrediction() Prediction {
	p := make(Prediction, len(Populations))
	for _, pop := range Populations {
		p[pop] = 0
	}
	return p
}

// Best returns the population with the highest proportion, ties broken by
// label. It returns "" for an empty or all-zero prediction.
func (p Prediction) Best() (string, float64) {
	labels := make([]string, 0, len(p))
	for l := range p {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best, score := "", 0.0
	for _, l := range labels {
		if p[l] > score {
			best, score = l, p[l]
		}
	}
	return best, score
}

// Qopt is a parsed fastNGSadmix result: a line of population labels and a
// line of proportions.
type Qopt struct {
	Labels []string
	Scores []float64
}

// ParseQopt reads a .qopt file.
func ParseQopt(r io.Reader) (*Qopt, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for len(lines) < 2 && sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read qopt: %w", err)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("read qopt: expected a labels line and a scores line, found %d lines", len(lines))
	}

	q := &Qopt{Labels: strings.Fields(lines[0])}
	for _, f := range strings.Fields(lines[1]) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("read qopt: invalid score %q", f)
		}
		q.Scores = append(q.Scores, v)
	}
	return q, nil
}

// Mismatched reports whether labels and scores differ in length.
func (q *Qopt) Mismatched() bool {
	return len(q.Labels) != len(q.Scores)
}

// Prediction pairs labels with scores positionally, up to the shorter of
// the two lists.
func (q *Qopt) Prediction() Prediction {
	n := min(len(q.Labels), len(q.Scores))
	p := make(Prediction, n)
	for i := 0; i < n; i++ {
		p[q.Labels[i]] = q.Scores[i]
	}
	return p
}
