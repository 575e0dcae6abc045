package logistic

import (
	"fmt"
	"math"
	"sort"

	"github.com/aescanero/dagoml/pkg/domain"
	"gonum.org/v1/gonum/mat"
)

const typeName = "LogisticRegression"

// Default hyperparameters.
const (
	DefaultC            = 1.0
	DefaultMaxIter      = 100
	DefaultTol          = 1e-4
	DefaultLearningRate = 0.1
)

// LogisticRegression is a multinomial logistic regression classifier with an
// L2 penalty of strength 1/C.
type LogisticRegression struct {
	domain.BaseEstimator

	C            float64
	MaxIter      int
	Tol          float64
	LearningRate float64
	FitIntercept bool

	// Learned state, set by Fit.
	Coef      *mat.Dense // classes x features
	Intercept []float64
	Classes   []float64
	NIter     int
}

// Option configures a LogisticRegression.
type Option func(*LogisticRegression)

func WithC(c float64) Option { return func(m *LogisticRegression) { m.C = c } }

func WithMaxIter(n int) Option { return func(m *LogisticRegression) { m.MaxIter = n } }

func WithTol(tol float64) Option { return func(m *LogisticRegression) { m.Tol = tol } }

func WithLearningRate(lr float64) Option {
	return func(m *LogisticRegression) { m.LearningRate = lr }
}

func WithFitIntercept(fit bool) Option {
	return func(m *LogisticRegression) { m.FitIntercept = fit }
}

// New creates an unfitted classifier.
func New(opts ...Option) *LogisticRegression {
	m := &LogisticRegression{
		C:            DefaultC,
		MaxIter:      DefaultMaxIter,
		Tol:          DefaultTol,
		LearningRate: DefaultLearningRate,
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New implements domain.Estimator.
func (m *LogisticRegression) New() domain.Estimator {
	return New()
}

// EstimatorType implements domain.Estimator.
func (m *LogisticRegression) EstimatorType() string {
	return domain.EstimatorTypeClassifier
}

// GetParams implements domain.Estimator. The model has no nested estimators,
// so deep and shallow parameters coincide.
func (m *LogisticRegression) GetParams(deep bool) domain.Params {
	return domain.Params{
		"C":             m.C,
		"max_iter":      m.MaxIter,
		"tol":           m.Tol,
		"learning_rate": m.LearningRate,
		"fit_intercept": m.FitIntercept,
	}
}

// SetParams implements domain.Estimator. Numeric parameters accept any Go
// integer or float type.
func (m *LogisticRegression) SetParams(params domain.Params) error {
	next := *m
	for _, name := range params.Keys() {
		v := params[name]
		var err error
		switch name {
		case "C":
			next.C, err = toFloat(v)
		case "max_iter":
			next.MaxIter, err = toInt(v)
		case "tol":
			next.Tol, err = toFloat(v)
		case "learning_rate":
			next.LearningRate, err = toFloat(v)
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				err = fmt.Errorf("expected bool, got %T", v)
			}
			next.FitIntercept = b
		default:
			return &domain.ParameterError{Estimator: typeName, Name: name}
		}
		if err != nil {
			return fmt.Errorf("invalid value for parameter %s: %w", name, err)
		}
	}
	*m = next
	return nil
}

// Fit trains the classifier on X and class labels y.
func (m *LogisticRegression) Fit(X mat.Matrix, y mat.Vector, _ domain.Params) error {
	if X == nil || y == nil {
		return fmt.Errorf("%s requires both X and y", typeName)
	}
	n, features := X.Dims()
	if y.Len() != n {
		return fmt.Errorf("X has %d samples but y has %d", n, y.Len())
	}
	if m.C <= 0 {
		return fmt.Errorf("C must be positive, got %v", m.C)
	}
	if m.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", m.MaxIter)
	}

	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return fmt.Errorf("%s needs samples of at least 2 classes, got %d", typeName, len(classes))
	}
	k := len(classes)
	index := make(map[float64]int, k)
	for i, c := range classes {
		index[c] = i
	}

	onehot := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		onehot.Set(i, index[y.AtVec(i)], 1)
	}

	W := mat.NewDense(k, features, nil)
	b := make([]float64, k)
	probs := mat.NewDense(n, k, nil)
	grad := mat.NewDense(k, features, nil)
	penalty := 1 / (m.C * float64(n))

	iter := 0
	for iter < m.MaxIter {
		iter++
		m.probabilities(probs, X, W, b)
		probs.Sub(probs, onehot)

		grad.Mul(probs.T(), X)
		grad.Scale(1/float64(n), grad)
		var reg mat.Dense
		reg.Scale(penalty, W)
		grad.Add(grad, &reg)

		maxGrad := mat.Norm(grad, math.Inf(1))
		var step mat.Dense
		step.Scale(m.LearningRate, grad)
		W.Sub(W, &step)

		if m.FitIntercept {
			for j := 0; j < k; j++ {
				g := mat.Sum(probs.ColView(j)) / float64(n)
				b[j] -= m.LearningRate * g
				maxGrad = math.Max(maxGrad, math.Abs(g))
			}
		}
		if maxGrad < m.Tol {
			break
		}
	}

	m.Coef = W
	m.Intercept = b
	m.Classes = classes
	m.NIter = iter
	m.SetFitted()
	return nil
}

// Predict returns the most probable class label for every row of X.
func (m *LogisticRegression) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if !m.IsFitted() {
		return nil, &domain.NotFittedError{Estimator: typeName, Operation: "Predict"}
	}
	n, features := X.Dims()
	if _, want := m.Coef.Dims(); features != want {
		return nil, fmt.Errorf("X has %d features, but %s is expecting %d", features, typeName, want)
	}

	k := len(m.Classes)
	scores := mat.NewDense(n, k, nil)
	m.probabilities(scores, X, m.Coef, m.Intercept)

	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if scores.At(i, j) > scores.At(i, best) {
				best = j
			}
		}
		out.SetVec(i, m.Classes[best])
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (m *LogisticRegression) Score(X mat.Matrix, y mat.Vector) (float64, error) {
	if !m.IsFitted() {
		return 0, &domain.NotFittedError{Estimator: typeName, Operation: "Score"}
	}
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	if y == nil || y.Len() != pred.Len() {
		return 0, fmt.Errorf("y must have %d labels", pred.Len())
	}
	correct := 0
	for i := 0; i < pred.Len(); i++ {
		if pred.AtVec(i) == y.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(pred.Len()), nil
}

// FittedAttributes implements domain.FittedStater.
func (m *LogisticRegression) FittedAttributes() map[string]any {
	if !m.IsFitted() {
		return map[string]any{}
	}
	return map[string]any{
		"coef_":      mat.DenseCopyOf(m.Coef),
		"intercept_": append([]float64(nil), m.Intercept...),
		"classes_":   append([]float64(nil), m.Classes...),
		"n_iter_":    m.NIter,
	}
}

// probabilities writes the softmax class probabilities of X into dst.
func (m *LogisticRegression) probabilities(dst *mat.Dense, X mat.Matrix, W *mat.Dense, b []float64) {
	dst.Mul(X, W.T())
	n, k := dst.Dims()
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		maxv := math.Inf(-1)
		for j := 0; j < k; j++ {
			row[j] = dst.At(i, j)
			if m.FitIntercept {
				row[j] += b[j]
			}
			maxv = math.Max(maxv, row[j])
		}
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - maxv)
			sum += row[j]
		}
		for j := range row {
			dst.Set(i, j, row[j]/sum)
		}
	}
}

func uniqueSorted(y mat.Vector) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for i := 0; i < y.Len(); i++ {
		v := y.AtVec(i)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
