package debias

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sky-flux/debias/optimizer"
)

// predictor is a one-hidden-layer network producing a label logit:
//
//	logit = relu(x·W1 + b1)·w2 + b2
//
// All weights live in one flat slice so the optimizer can update them in
// place; w1, b1 and w2 are views into it.
type predictor struct {
	in, hidden int
	params     []float64
	w1         *mat.Dense
	b1, w2     []float64
}

// predictorPass holds the activations of one forward pass needed by backward.
type predictorPass struct {
	z1, a1 *mat.Dense
	logits []float64
}

func predictorSize(in, hidden int) int {
	return in*hidden + 2*hidden + 1
}

// newPredictor initialises weights from N(0, 1/fan_in); biases start at zero.
func newPredictor(in, hidden int, rng *rand.Rand) *predictor {
	params := make([]float64, predictorSize(in, hidden))
	p := &predictor{in: in, hidden: hidden, params: params}
	p.w1, p.b1, p.w2, _ = p.split(params)

	std1 := 1 / math.Sqrt(float64(in))
	for i := 0; i < in*hidden; i++ {
		params[i] = rng.NormFloat64() * std1
	}
	std2 := 1 / math.Sqrt(float64(hidden))
	for i := range p.w2 {
		p.w2[i] = rng.NormFloat64() * std2
	}
	return p
}

// split returns W1, b1, w2 views and the b2 index over a vector laid out
// like params: [W1 | b1 | w2 | b2].
func (p *predictor) split(v []float64) (w1 *mat.Dense, b1, w2 []float64, b2 int) {
	off := p.in * p.hidden
	w1 = mat.NewDense(p.in, p.hidden, v[:off])
	b1 = v[off : off+p.hidden]
	w2 = v[off+p.hidden : off+2*p.hidden]
	return w1, b1, w2, off + 2*p.hidden
}

// tensors returns the [start, end) ranges of W1, b1, w2 and b2 in params.
func (p *predictor) tensors() [][2]int {
	off := p.in * p.hidden
	return [][2]int{
		{0, off},
		{off, off + p.hidden},
		{off + p.hidden, off + 2*p.hidden},
		{off + 2*p.hidden, off + 2*p.hidden + 1},
	}
}

func (p *predictor) b2() float64 {
	return p.params[len(p.params)-1]
}

// forward computes logits for a batch x (n×in).
func (p *predictor) forward(x *mat.Dense) predictorPass {
	n, _ := x.Dims()

	z1 := mat.NewDense(n, p.hidden, nil)
	z1.Mul(x, p.w1)
	b1 := p.b1
	z1.Apply(func(_, j int, v float64) float64 { return v + b1[j] }, z1)

	a1 := mat.NewDense(n, p.hidden, nil)
	a1.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, z1)

	out := mat.NewVecDense(n, nil)
	out.MulVec(a1, mat.NewVecDense(p.hidden, p.w2))
	logits := out.RawVector().Data
	b2 := p.b2()
	for i := range logits {
		logits[i] += b2
	}
	return predictorPass{z1: z1, a1: a1, logits: logits}
}

// backward writes into grad the gradient of a loss with respect to the
// predictor parameters, given dLogits = ∂loss/∂logits for the same batch.
func (p *predictor) backward(x *mat.Dense, pass predictorPass, dLogits, grad []float64) {
	n, _ := x.Dims()
	gW1, gb1, gw2, gb2 := p.split(grad)
	delta := mat.NewVecDense(n, dLogits)

	mat.NewVecDense(p.hidden, gw2).MulVec(pass.a1.T(), delta)
	grad[gb2] = floats.Sum(dLogits)

	dz1 := mat.NewDense(n, p.hidden, nil)
	dz1.Outer(1, delta, mat.NewVecDense(p.hidden, p.w2))
	z1 := pass.z1
	dz1.Apply(func(i, j int, v float64) float64 {
		if z1.At(i, j) > 0 {
			return v
		}
		return 0
	}, dz1)

	gW1.Mul(x.T(), dz1)
	for j := range gb1 {
		gb1[j] = floats.Sum(mat.Col(nil, j, dz1))
	}
}

// adversary predicts the protected attribute from the predictor's logit:
//
//	s = σ((1+|c|)·logit)
//	a = [s]                  DemographicParity
//	a = [s, s·y, s·(1-y)]    EqualizedOdds
//	adv_logit = a·w + b
//
// It never sees the raw features. Layout: [w | b | c].
type adversary struct {
	variant Variant
	params  []float64
}

type adversaryPass struct {
	s      []float64
	inputs *mat.Dense
	logits []float64
}

func newAdversary(variant Variant, rng *rand.Rand) *adversary {
	k := variant.inputs()
	params := make([]float64, k+2)
	for i := 0; i < k; i++ {
		params[i] = rng.NormFloat64() / math.Sqrt(float64(k))
	}
	params[k+1] = 1
	return &adversary{variant: variant, params: params}
}

func (a *adversary) k() int { return a.variant.inputs() }

func (a *adversary) w() []float64 { return a.params[:a.k()] }

func (a *adversary) b() float64 { return a.params[a.k()] }

func (a *adversary) c() float64 { return a.params[a.k()+1] }

// forward computes protected-attribute logits from predictor logits.
// labels are only read for EqualizedOdds.
func (a *adversary) forward(predLogits, labels []float64) adversaryPass {
	n := len(predLogits)
	k := a.k()
	scale := 1 + math.Abs(a.c())

	s := make([]float64, n)
	inputs := mat.NewDense(n, k, nil)
	for i, z := range predLogits {
		s[i] = optimizer.Sigmoid(scale * z)
		inputs.Set(i, 0, s[i])
		if a.variant == EqualizedOdds {
			inputs.Set(i, 1, s[i]*labels[i])
			inputs.Set(i, 2, s[i]*(1-labels[i]))
		}
	}

	out := mat.NewVecDense(n, nil)
	out.MulVec(inputs, mat.NewVecDense(k, a.w()))
	logits := out.RawVector().Data
	b := a.b()
	for i := range logits {
		logits[i] += b
	}
	return adversaryPass{s: s, inputs: inputs, logits: logits}
}

// backward writes the adversary parameter gradient into grad and returns
// ∂loss/∂predLogits, the signal the predictor is trained against.
func (a *adversary) backward(predLogits, labels []float64, pass adversaryPass, dLogits, grad []float64) []float64 {
	n := len(predLogits)
	k := a.k()
	w := a.w()
	c := a.c()
	scale := 1 + math.Abs(c)

	mat.NewVecDense(k, grad[:k]).MulVec(pass.inputs.T(), mat.NewVecDense(n, dLogits))
	grad[k] = floats.Sum(dLogits)

	var gc float64
	dPred := make([]float64, n)
	for i, g := range dLogits {
		ds := g * w[0]
		if a.variant == EqualizedOdds {
			ds += g * (w[1]*labels[i] + w[2]*(1-labels[i]))
		}
		sd := pass.s[i] * (1 - pass.s[i])
		dPred[i] = ds * sd * scale
		gc += ds * sd * predLogits[i] * sign(c)
	}
	grad[k+1] = gc
	return dPred
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// allFinite reports whether every element of v is neither NaN nor ±Inf.
func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
