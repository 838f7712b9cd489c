package tracking

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Constant-velocity model with a fixed unit tick:
//
//	F = [1 0 1 0]    H = [1 0 0 0]
//	    [0 1 0 1]        [0 1 0 0]
//	    [0 0 1 0]
//	    [0 0 0 1]
//
// State is [x, y, vx, vy]. These matrices are shared and never written.
var (
	transition = mat.NewDense(4, 4, []float64{
		1, 0, 1, 0,
		0, 1, 0, 1,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	projection = mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	identity4 = mat.NewDiagDense(4, []float64{1, 1, 1, 1})
)

// noiseModel carries the process and measurement covariances shared by all
// tracks in a bank.
type noiseModel struct {
	q  *mat.DiagDense // 4x4 process noise
	r  *mat.DiagDense // 2x2 measurement noise
	p0 []float64      // initial covariance diagonal
}

func newNoiseModel(cfg TrackerConfig) noiseModel {
	q, r := cfg.ProcessNoise, cfg.MeasurementNoise
	pp, pv := cfg.InitialPositionVariance, cfg.InitialVelocityVariance
	return noiseModel{
		q:  mat.NewDiagDense(4, []float64{q, q, q, q}),
		r:  mat.NewDiagDense(2, []float64{r, r}),
		p0: []float64{pp, pp, pv, pv},
	}
}

// kalman is a linear Gaussian estimator for one track.
type kalman struct {
	x *mat.VecDense // state [x, y, vx, vy]
	p *mat.Dense    // 4x4 estimation-error covariance
}

func newKalman(x, y float64, noise noiseModel) kalman {
	p := mat.NewDense(4, 4, nil)
	for i, v := range noise.p0 {
		p.Set(i, i, v)
	}
	return kalman{
		x: mat.NewVecDense(4, []float64{x, y, 0, 0}),
		p: p,
	}
}

// predict advances the state one tick: x' = F x, P' = F P Fᵀ + Q.
func (k *kalman) predict(noise noiseModel) {
	x := mat.NewVecDense(4, nil)
	x.MulVec(transition, k.x)

	var fp mat.Dense
	fp.Mul(transition, k.p)
	p := mat.NewDense(4, 4, nil)
	p.Mul(&fp, transition.T())
	p.Add(p, noise.q)

	k.x, k.p = x, p
}

// correct folds a position measurement into the state.
//
//	y = z − H x
//	S = H P Hᵀ + R
//	K = P Hᵀ S⁻¹
//	x' = x + K y
//	P' = (I − K H) P
func (k *kalman) correct(zx, zy float64, noise noiseModel) error {
	hx := mat.NewVecDense(2, nil)
	hx.MulVec(projection, k.x)
	innovation := mat.NewVecDense(2, []float64{zx, zy})
	innovation.SubVec(innovation, hx)

	var hp, s mat.Dense
	hp.Mul(projection, k.p)
	s.Mul(&hp, projection.T())
	s.Add(&s, noise.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	var pht, gain mat.Dense
	pht.Mul(k.p, projection.T())
	gain.Mul(&pht, &sInv)

	var step mat.VecDense
	step.MulVec(&gain, innovation)
	x := mat.NewVecDense(4, nil)
	x.AddVec(k.x, &step)

	var kh, ikh mat.Dense
	kh.Mul(&gain, projection)
	ikh.Sub(identity4, &kh)
	p := mat.NewDense(4, 4, nil)
	p.Mul(&ikh, k.p)

	k.x, k.p = x, p
	return nil
}
