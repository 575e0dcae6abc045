package fingerprint_test

import (
	"math"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/aescanero/dagoml/pkg/datasets"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/fingerprint"
	"github.com/aescanero/dagoml/pkg/models/logistic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type named string

func (n named) Token() string { return string(n) }

type point struct {
	X, Y   int
	hidden string
}

func TestTokenizeDeterministic(t *testing.T) {
	values := []any{
		nil, true, 42, uint8(7), 3.14, "abc", []byte("abc"),
		[]int{1, 2, 3}, map[string]int{"a": 1}, point{X: 1, Y: 2},
		mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
	}
	for _, v := range values {
		assert.Equal(t, fingerprint.Tokenize(v), fingerprint.Tokenize(v), "%#v", v)
	}
	assert.Len(t, fingerprint.Tokenize(1), 64)
}

func TestTokenizeDistinguishesTypesAndOrder(t *testing.T) {
	assert.NotEqual(t, fingerprint.Tokenize("1"), fingerprint.Tokenize(1))
	assert.NotEqual(t, fingerprint.Tokenize([]byte("a")), fingerprint.Tokenize("a"))
	assert.NotEqual(t, fingerprint.Tokenize([]int{1, 2}), fingerprint.Tokenize([]int{2, 1}))
	assert.NotEqual(t, fingerprint.Tokenize("a", "b"), fingerprint.Tokenize("ab"))
	assert.NotEqual(t, fingerprint.Tokenize(nil), fingerprint.Tokenize([]int{}))
	assert.Equal(t, fingerprint.Tokenize(int8(3)), fingerprint.Tokenize(int64(3)))
}

func TestTokenizeMapsIgnoreInsertionOrder(t *testing.T) {
	a := map[string]any{}
	b := map[string]any{}
	for i, k := range []string{"x", "y", "z", "w"} {
		a[k] = i
	}
	for _, k := range []string{"w", "z", "y", "x"} {
		b[k] = map[string]int{"x": 0, "y": 1, "z": 2, "w": 3}[k]
	}
	assert.Equal(t, fingerprint.Tokenize(a), fingerprint.Tokenize(b))

	b["x"] = 100
	assert.NotEqual(t, fingerprint.Tokenize(a), fingerprint.Tokenize(b))
}

func TestTokenizeFloats(t *testing.T) {
	assert.Equal(t, fingerprint.Tokenize(0.0), fingerprint.Tokenize(math.Copysign(0, -1)))
	assert.Equal(t, fingerprint.Tokenize(math.NaN()), fingerprint.Tokenize(math.NaN()))
	assert.NotEqual(t, fingerprint.Tokenize(1.0), fingerprint.Tokenize(1.0000001))
}

func TestTokenizeStructsUseAllFields(t *testing.T) {
	a := point{X: 1, Y: 2, hidden: "a"}
	b := point{X: 1, Y: 2, hidden: "b"}
	assert.NotEqual(t, fingerprint.Tokenize(a), fingerprint.Tokenize(b))
	assert.Equal(t, fingerprint.Tokenize(b), fingerprint.Tokenize(&b))
	assert.Equal(t, fingerprint.Tokenize(a), fingerprint.Tokenize(point{X: 1, Y: 2, hidden: "a"}))
	assert.NotEqual(t, fingerprint.Tokenize(a), fingerprint.Tokenize(point{X: 2, Y: 2, hidden: "a"}))
}

func TestTokenizeValuesWithUnexportedState(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.NotEqual(t, fingerprint.Tokenize(t1), fingerprint.Tokenize(t2))
	assert.Equal(t, fingerprint.Tokenize(t1), fingerprint.Tokenize(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.NotEqual(t, fingerprint.Tokenize(big.NewInt(1)), fingerprint.Tokenize(big.NewInt(2)))
	assert.Equal(t, fingerprint.Tokenize(big.NewInt(7)), fingerprint.Tokenize(big.NewInt(7)))

	r1 := rand.New(rand.NewSource(1))
	r2 := rand.New(rand.NewSource(2))
	assert.NotEqual(t, fingerprint.Tokenize(r1), fingerprint.Tokenize(r2))
	assert.Equal(t, fingerprint.Tokenize(r1), fingerprint.Tokenize(rand.New(rand.NewSource(1))))
}

// stamped is an estimator whose parameters carry unexported state.
type stamped struct {
	Since time.Time
	Limit *big.Int
}

func (s *stamped) New() domain.Estimator { return &stamped{} }

func (s *stamped) EstimatorType() string { return domain.EstimatorTypeClassifier }

func (s *stamped) GetParams(bool) domain.Params {
	return domain.Params{"since": s.Since, "limit": s.Limit}
}

func (s *stamped) SetParams(params domain.Params) error {
	for k, v := range params {
		switch k {
		case "since":
			s.Since = v.(time.Time)
		case "limit":
			s.Limit = v.(*big.Int)
		default:
			return &domain.ParameterError{Estimator: "stamped", Name: k}
		}
	}
	return nil
}

func (s *stamped) Fit(mat.Matrix, mat.Vector, domain.Params) error { return nil }

func (s *stamped) Predict(X mat.Matrix) (*mat.VecDense, error) {
	r, _ := X.Dims()
	return mat.NewVecDense(r, nil), nil
}

func TestTokenizeEstimatorParamsWithUnexportedState(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &stamped{Since: day, Limit: big.NewInt(10)}

	assert.Equal(t, fingerprint.Tokenize(a), fingerprint.Tokenize(&stamped{Since: day, Limit: big.NewInt(10)}))
	assert.NotEqual(t, fingerprint.Tokenize(a), fingerprint.Tokenize(&stamped{Since: day.Add(time.Hour), Limit: big.NewInt(10)}))
	assert.NotEqual(t, fingerprint.Tokenize(a), fingerprint.Tokenize(&stamped{Since: day, Limit: big.NewInt(11)}))
}

type node struct {
	Name string
	Next *node
}

func TestTokenizeCyclicValues(t *testing.T) {
	loop := &node{Name: "a"}
	loop.Next = loop

	var first string
	require.NotPanics(t, func() { first = fingerprint.Tokenize(loop) })
	assert.Equal(t, first, fingerprint.Tokenize(loop))
	assert.NotEqual(t, first, fingerprint.Tokenize(&node{Name: "a"}))

	m := map[string]any{"k": 1}
	m["self"] = m
	require.NotPanics(t, func() { fingerprint.Tokenize(m) })
	assert.Equal(t, fingerprint.Tokenize(m), fingerprint.Tokenize(m))
}

func TestTokenizeTypedNilPointers(t *testing.T) {
	var none string
	require.NotPanics(t, func() { none = fingerprint.Tokenize((*mat.Dense)(nil)) })
	assert.Equal(t, fingerprint.Tokenize(nil), none)
	assert.Equal(t, fingerprint.Tokenize(nil), fingerprint.Tokenize((*mat.VecDense)(nil)))
	assert.NotEqual(t, none, fingerprint.Tokenize(mat.NewDense(1, 1, nil)))
}

func TestTokenizeMatrixContent(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	c := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	assert.Equal(t, fingerprint.Tokenize(a), fingerprint.Tokenize(b))
	assert.NotEqual(t, fingerprint.Tokenize(a), fingerprint.Tokenize(c))
}

func TestTokenizerValuesUseTheirToken(t *testing.T) {
	assert.Equal(t, fingerprint.Tokenize(named("k")), fingerprint.Tokenize(named("k")))
	assert.NotEqual(t, fingerprint.Tokenize(named("k")), fingerprint.Tokenize("k"))
	assert.NotEqual(t, fingerprint.Tokenize(named("k")), fingerprint.Tokenize(named("j")))
}

func TestTokenizeOpaqueValuesNeverMatch(t *testing.T) {
	f := func() {}
	assert.NotEqual(t, fingerprint.Tokenize(f), fingerprint.Tokenize(f))
	ch := make(chan int)
	assert.NotEqual(t, fingerprint.Tokenize(ch), fingerprint.Tokenize(ch))
}

func TestTokenizeEstimators(t *testing.T) {
	clf1 := logistic.New(logistic.WithC(1000))
	clf2 := logistic.New(logistic.WithC(5000))

	clone1, err := domain.Clone(clf1)
	require.NoError(t, err)

	assert.Equal(t, fingerprint.Tokenize(clf1), fingerprint.Tokenize(clf1))
	assert.Equal(t, fingerprint.Tokenize(clf1), fingerprint.Tokenize(clone1))
	assert.NotEqual(t, fingerprint.Tokenize(clf1), fingerprint.Tokenize(clf2))

	X, y := datasets.ThreeClass(0)
	fit1, _ := domain.Clone(clf1)
	require.NoError(t, fit1.Fit(X, y, nil))
	assert.Equal(t, fingerprint.Tokenize(fit1), fingerprint.Tokenize(fit1))
	assert.NotEqual(t, fingerprint.Tokenize(fit1), fingerprint.Tokenize(clf1))

	fit2, _ := domain.Clone(clf2)
	require.NoError(t, fit2.Fit(X, y, nil))
	assert.NotEqual(t, fingerprint.Tokenize(fit1), fingerprint.Tokenize(fit2))

	X2, y2 := datasets.ThreeClass(99)
	fit3, _ := domain.Clone(clf1)
	require.NoError(t, fit3.Fit(X2, y2, nil))
	assert.NotEqual(t, fingerprint.Tokenize(fit1), fingerprint.Tokenize(fit3))
}
