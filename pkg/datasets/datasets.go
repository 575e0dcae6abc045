// Package datasets generates small deterministic datasets for demos and tests.
package datasets

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ThreeClassCenters are the cluster centers of the default 2-feature,
// 3-class problem.
var ThreeClassCenters = [][]float64{
	{5.0, 3.4},
	{5.9, 2.8},
	{6.6, 3.0},
}

// Blobs draws nPerClass samples around each center with isotropic Gaussian
// noise of standard deviation spread. Labels are the center indices. The
// same seed always yields the same data.
func Blobs(nPerClass int, centers [][]float64, spread float64, seed int64) (*mat.Dense, *mat.VecDense, error) {
	if nPerClass <= 0 {
		return nil, nil, fmt.Errorf("nPerClass must be positive, got %d", nPerClass)
	}
	if len(centers) == 0 {
		return nil, nil, fmt.Errorf("at least one center is required")
	}
	features := len(centers[0])
	for i, c := range centers {
		if len(c) != features || features == 0 {
			return nil, nil, fmt.Errorf("center %d has %d features, expected %d", i, len(c), features)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	n := nPerClass * len(centers)
	X := mat.NewDense(n, features, nil)
	y := mat.NewVecDense(n, nil)

	row := 0
	for label, c := range centers {
		for s := 0; s < nPerClass; s++ {
			for j, mu := range c {
				X.Set(row, j, mu+spread*rng.NormFloat64())
			}
			y.SetVec(row, float64(label))
			row++
		}
	}
	return X, y, nil
}

// ThreeClass returns 50 samples per class around ThreeClassCenters.
func ThreeClass(seed int64) (*mat.Dense, *mat.VecDense) {
	X, y, err := Blobs(50, ThreeClassCenters, 0.3, seed)
	if err != nil {
		panic(err)
	}
	return X, y
}
