package tuning

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler proposes the next parameter values given the finished trials.
type Sampler interface {
	Sample(space []Param, history []*Trial) map[string]float64
}

// TPESampler draws uniformly for the first NStartup trials, then fits one
// Parzen estimator to the best Gamma share of trials and one to the rest
// and keeps the candidate maximising l(x)/g(x).
type TPESampler struct {
	NStartup    int
	Gamma       float64
	NCandidates int

	rng *rand.Rand
}

// NewTPESampler returns a sampler with the usual defaults.
func NewTPESampler(seed int64) *TPESampler {
	return &TPESampler{
		NStartup:    10,
		Gamma:       0.25,
		NCandidates: 24,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Sample implements Sampler. Dimensions are modelled independently.
func (s *TPESampler) Sample(space []Param, history []*Trial) map[string]float64 {
	done := completed(history)
	out := make(map[string]float64, len(space))
	if len(done) < s.NStartup || len(done) == 0 {
		for _, p := range space {
			out[p.Name] = s.uniform(p)
		}
		return out
	}

	sort.SliceStable(done, func(i, j int) bool { return done[i].Value > done[j].Value })
	nGood := int(math.Ceil(s.Gamma * float64(len(done))))
	if nGood < 1 {
		nGood = 1
	}
	good, bad := done[:nGood], done[nGood:]

	for _, p := range space {
		low, high := p.Low, p.High
		if p.Int {
			low, high = low-0.5, high+0.5
		}
		l := newParzen(observations(good, p.Name), low, high)
		g := newParzen(observations(bad, p.Name), low, high)

		best, bestScore := 0.0, math.Inf(-1)
		for i := 0; i < s.NCandidates; i++ {
			x := l.sample(s.rng)
			if score := l.logPDF(x) - g.logPDF(x); score > bestScore {
				best, bestScore = x, score
			}
		}
		out[p.Name] = p.clamp(best)
	}
	return out
}

func (s *TPESampler) uniform(p Param) float64 {
	if p.Int {
		lo, hi := int(p.Low), int(p.High)
		return float64(lo + s.rng.Intn(hi-lo+1))
	}
	return p.Low + s.rng.Float64()*(p.High-p.Low)
}

func completed(history []*Trial) []*Trial {
	out := make([]*Trial, 0, len(history))
	for _, t := range history {
		if t.State == TrialComplete {
			out = append(out, t)
		}
	}
	return out
}

func observations(trials []*Trial, name string) []float64 {
	out := make([]float64, len(trials))
	for i, t := range trials {
		out[i] = t.Params[name]
	}
	return out
}

// parzen is an equally weighted mixture of normals truncated to
// [low, high]: one kernel per observation plus a wide prior kernel.
type parzen struct {
	kernels []distuv.Normal
	mass    []float64
	low     float64
	high    float64
}

func newParzen(obs []float64, low, high float64) *parzen {
	width := high - low
	mus := append([]float64{(low + high) / 2}, obs...)
	order := make([]int, len(mus))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return mus[order[a]] < mus[order[b]] })

	minSigma := width / math.Min(100, float64(1+len(obs)))
	sigmas := make([]float64, len(mus))
	for rank, idx := range order {
		left, right := low, high
		if rank > 0 {
			left = mus[order[rank-1]]
		}
		if rank < len(order)-1 {
			right = mus[order[rank+1]]
		}
		sigma := math.Max(mus[idx]-left, right-mus[idx])
		sigmas[idx] = math.Max(minSigma, math.Min(width, sigma))
	}
	sigmas[0] = width

	p := &parzen{low: low, high: high}
	for i, mu := range mus {
		n := distuv.Normal{Mu: mu, Sigma: sigmas[i]}
		p.kernels = append(p.kernels, n)
		p.mass = append(p.mass, n.CDF(high)-n.CDF(low))
	}
	return p
}

func (p *parzen) logPDF(x float64) float64 {
	var sum float64
	for i, k := range p.kernels {
		if p.mass[i] > 0 {
			sum += k.Prob(x) / p.mass[i]
		}
	}
	sum /= float64(len(p.kernels))
	if sum <= 0 {
		return math.Inf(-1)
	}
	return math.Log(sum)
}

func (p *parzen) sample(rng *rand.Rand) float64 {
	k := p.kernels[rng.Intn(len(p.kernels))]
	for attempt := 0; attempt < 100; attempt++ {
		x := k.Mu + k.Sigma*rng.NormFloat64()
		if x >= p.low && x <= p.high {
			return x
		}
	}
	return math.Max(p.low, math.Min(p.high, k.Mu))
}
