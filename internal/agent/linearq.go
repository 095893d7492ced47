package agent

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ecoroute/ecoroute/internal/encoder"
	"github.com/ecoroute/ecoroute/internal/environment"
)

// ErrIncompatibleModel is returned when a stored model does not match the
// environment's observation or action space.
var ErrIncompatibleModel = errors.New("incompatible model")

const snapshotVersion = 1

// Hyperparameters configure LinearQ.
type Hyperparameters struct {
	LearningRate        float64
	Gamma               float64
	LearningStarts      int     // steps of pure exploration before updates begin
	ExplorationInitial  float64 // epsilon at step 0
	ExplorationFinal    float64 // epsilon after the decay
	ExplorationFraction float64 // share of TotalTimesteps over which epsilon decays
	TotalTimesteps      int
}

// DefaultHyperparameters returns the settings of the reference training run.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		LearningRate:        1e-3,
		Gamma:               0.99,
		LearningStarts:      1000,
		ExplorationInitial:  1.0,
		ExplorationFinal:    0.05,
		ExplorationFraction: 0.1,
		TotalTimesteps:      10000,
	}
}

// Transition is one (s, a, r, s', done) sample.
type Transition struct {
	Obs      encoder.Observation
	Action   int
	Reward   float64
	Next     encoder.Observation
	Terminal bool
}

// LinearQ is an epsilon-greedy agent with one linear action-value function
// per action over max-abs scaled observations plus a bias term.
type LinearQ struct {
	hp       Hyperparameters
	obsLen   int
	nActions int

	weights     []*mat.VecDense // nActions vectors of length obsLen+1
	scale       []float64       // running max |x_i|
	rewardScale float64         // running max |r|
	updates     int

	rng *rand.Rand
}

// NewLinearQ creates an untrained agent for the given spaces.
func NewLinearQ(obs environment.ObservationSpec, act environment.ActionSpec, hp Hyperparameters, rng *rand.Rand) *LinearQ {
	q := &LinearQ{
		hp:       hp,
		obsLen:   obs.Length,
		nActions: act.N,
		weights:  make([]*mat.VecDense, act.N),
		scale:    make([]float64, obs.Length),
		rng:      rng,
	}
	for a := range q.weights {
		q.weights[a] = mat.NewVecDense(obs.Length+1, nil)
	}
	return q
}

// Hyperparameters returns the agent's configuration.
func (q *LinearQ) Hyperparameters() Hyperparameters {
	return q.hp
}

// Updates returns the number of gradient updates applied.
func (q *LinearQ) Updates() int {
	return q.updates
}

// SetRand replaces the exploration source, e.g. after loading a stored model.
func (q *LinearQ) SetRand(rng *rand.Rand) {
	q.rng = rng
}

// features scales obs into [0, 1] per feature and appends a bias of 1.
func (q *LinearQ) features(obs encoder.Observation) *mat.VecDense {
	x := mat.NewVecDense(q.obsLen+1, nil)
	for i := 0; i < q.obsLen && i < len(obs); i++ {
		if q.scale[i] > 0 {
			x.SetVec(i, obs[i]/q.scale[i])
		}
	}
	x.SetVec(q.obsLen, 1)
	return x
}

// QValues returns the estimated value of every action for obs.
func (q *LinearQ) QValues(obs encoder.Observation) []float64 {
	x := q.features(obs)
	values := make([]float64, q.nActions)
	for a, w := range q.weights {
		values[a] = mat.Dot(w, x)
	}
	return values
}

// Predict implements Policy with the greedy action.
func (q *LinearQ) Predict(obs encoder.Observation) int {
	return floats.MaxIdx(q.QValues(obs))
}

// Epsilon returns the exploration rate at timestep t.
func (q *LinearQ) Epsilon(t int) float64 {
	decaySteps := q.hp.ExplorationFraction * float64(q.hp.TotalTimesteps)
	if decaySteps <= 0 {
		return q.hp.ExplorationFinal
	}
	progress := math.Min(float64(t)/decaySteps, 1)
	return q.hp.ExplorationInitial + progress*(q.hp.ExplorationFinal-q.hp.ExplorationInitial)
}

// Act chooses an action at timestep t: uniformly random before LearningStarts,
// epsilon-greedy afterwards.
func (q *LinearQ) Act(obs encoder.Observation, t int) int {
	if t < q.hp.LearningStarts || q.rng.Float64() < q.Epsilon(t) {
		return q.rng.Intn(q.nActions)
	}
	return q.Predict(obs)
}

// Observe applies a semi-gradient TD(0) update toward r + gamma * max Q(s').
// It returns the TD error.
func (q *LinearQ) Observe(tr Transition) float64 {
	q.track(tr.Obs)
	q.track(tr.Next)
	if abs := math.Abs(tr.Reward); abs > q.rewardScale {
		q.rewardScale = abs
	}

	reward := tr.Reward
	if q.rewardScale > 0 {
		reward /= q.rewardScale
	}

	target := reward
	if !tr.Terminal {
		target += q.hp.Gamma * floats.Max(q.QValues(tr.Next))
	}

	x := q.features(tr.Obs)
	w := q.weights[tr.Action]
	tdError := target - mat.Dot(w, x)
	w.AddScaledVec(w, q.hp.LearningRate*tdError, x)
	q.updates++

	return tdError
}

func (q *LinearQ) track(obs encoder.Observation) {
	for i := 0; i < q.obsLen && i < len(obs); i++ {
		if abs := math.Abs(obs[i]); abs > q.scale[i] {
			q.scale[i] = abs
		}
	}
}

// snapshot is the gob-encoded form of a LinearQ.
type snapshot struct {
	Version     int
	Hyper       Hyperparameters
	ObsLen      int
	NActions    int
	Weights     [][]float64
	Scale       []float64
	RewardScale float64
	Updates     int
}

// MarshalBinary encodes the agent as an opaque blob.
func (q *LinearQ) MarshalBinary() ([]byte, error) {
	s := snapshot{
		Version:     snapshotVersion,
		Hyper:       q.hp,
		ObsLen:      q.obsLen,
		NActions:    q.nActions,
		Weights:     make([][]float64, q.nActions),
		Scale:       append([]float64(nil), q.scale...),
		RewardScale: q.rewardScale,
		Updates:     q.updates,
	}
	for a, w := range q.weights {
		s.Weights[a] = append([]float64(nil), w.RawVector().Data...)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encoding agent: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadLinearQ decodes a blob produced by MarshalBinary and checks it against
// the given spaces.
func LoadLinearQ(blob []byte, obs environment.ObservationSpec, act environment.ActionSpec, rng *rand.Rand) (*LinearQ, error) {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding agent: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrIncompatibleModel, s.Version)
	}
	if s.ObsLen != obs.Length || s.NActions != act.N || len(s.Weights) != act.N || len(s.Scale) != obs.Length {
		return nil, fmt.Errorf("%w: model is %dx%d, environment is %dx%d",
			ErrIncompatibleModel, s.ObsLen, s.NActions, obs.Length, act.N)
	}

	q := NewLinearQ(obs, act, s.Hyper, rng)
	for a, w := range s.Weights {
		if len(w) != obs.Length+1 {
			return nil, fmt.Errorf("%w: weight vector %d has length %d", ErrIncompatibleModel, a, len(w))
		}
		q.weights[a] = mat.NewVecDense(len(w), append([]float64(nil), w...))
	}
	copy(q.scale, s.Scale)
	q.rewardScale = s.RewardScale
	q.updates = s.Updates
	return q, nil
}
