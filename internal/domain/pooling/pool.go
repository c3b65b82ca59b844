package pooling

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxConditionNumber bounds how ill-conditioned a site covariance may be
// before pooling refuses it. A near-singular covariance would invert into a
// degenerate near-infinite precision and silently dominate the pool.
const maxConditionNumber = 1e12

// symmetryTol is the relative tolerance for the symmetry check on published
// covariance matrices.
const symmetryTol = 1e-9

// Pool combines site estimates by multivariate inverse-variance weighting:
// each site's precision is the inverse of its covariance, the pooled
// precision is the sum of site precisions, and the pooled coefficient is the
// precision-weighted mean. Cross-coefficient correlation structure survives,
// unlike scalar per-coefficient pooling.
func Pool(estimates []SiteEstimate) (*PooledEstimate, error) {
	if len(estimates) == 0 {
		return nil, &EmptyPoolError{}
	}

	k := estimates[0].Dim()
	if k == 0 {
		return nil, &InvalidCovarianceError{Site: estimates[0].Site, Reason: "empty coefficient vector"}
	}

	pooledPrec := mat.NewSymDense(k, nil)
	rhs := mat.NewVecDense(k, nil)

	for _, est := range estimates {
		if est.Dim() != k {
			return nil, &InvalidCovarianceError{Site: est.Site, Reason: "coefficient dimension differs across sites"}
		}
		sym, err := toSymmetric(est)
		if err != nil {
			return nil, err
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(sym); !ok {
			return nil, &InvalidCovarianceError{Site: est.Site, Reason: "covariance is not positive definite"}
		}
		if cond := chol.Cond(); math.IsInf(cond, 0) || cond > maxConditionNumber {
			return nil, &InvalidCovarianceError{Site: est.Site, Reason: "covariance is near singular"}
		}

		var prec mat.SymDense
		if err := chol.InverseTo(&prec); err != nil {
			return nil, &InvalidCovarianceError{Site: est.Site, Reason: "covariance could not be inverted"}
		}

		pooledPrec.AddSym(pooledPrec, &prec)

		var weighted mat.VecDense
		weighted.MulVec(&prec, mat.NewVecDense(k, est.Coef))
		rhs.AddVec(rhs, &weighted)
	}

	// Pooled covariance is the inverse of the summed precision; the pooled
	// coefficient solves pooledPrec * coef = rhs through the same factor.
	var pooledChol mat.Cholesky
	if ok := pooledChol.Factorize(pooledPrec); !ok {
		return nil, &InvalidCovarianceError{Reason: "pooled precision is not positive definite"}
	}

	var pooledCov mat.SymDense
	if err := pooledChol.InverseTo(&pooledCov); err != nil {
		return nil, &InvalidCovarianceError{Reason: "pooled precision could not be inverted"}
	}

	var coef mat.VecDense
	if err := pooledChol.SolveVecTo(&coef, rhs); err != nil {
		return nil, &InvalidCovarianceError{Reason: "pooled coefficient solve failed"}
	}

	out := &PooledEstimate{
		Coef:  make([]float64, k),
		Cov:   make([][]float64, k),
		Sites: len(estimates),
	}
	for i := 0; i < k; i++ {
		out.Coef[i] = coef.AtVec(i)
		out.Cov[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			out.Cov[i][j] = pooledCov.At(i, j)
		}
	}
	return out, nil
}

// toSymmetric validates shape and symmetry and builds the gonum matrix.
func toSymmetric(est SiteEstimate) (*mat.SymDense, error) {
	k := est.Dim()
	if len(est.Cov) != k {
		return nil, &InvalidCovarianceError{Site: est.Site, Reason: "covariance row count does not match coefficient dimension"}
	}
	sym := mat.NewSymDense(k, nil)
	for i, row := range est.Cov {
		if len(row) != k {
			return nil, &InvalidCovarianceError{Site: est.Site, Reason: "covariance is not square"}
		}
		for j := i; j < k; j++ {
			a, b := row[j], est.Cov[j][i]
			scale := math.Max(math.Abs(a), math.Abs(b))
			if math.Abs(a-b) > symmetryTol*math.Max(scale, 1) {
				return nil, &InvalidCovarianceError{Site: est.Site, Reason: "covariance is not symmetric"}
			}
			sym.SetSym(i, j, a)
		}
	}
	return sym, nil
}
