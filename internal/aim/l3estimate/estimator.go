package l3estimate

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/config"
	"github.com/banshee-data/autoaim/internal/monitoring"
)

// State vector layout.
const (
	ix = iota
	ivx
	iy
	ivy
	stateDim
)

const measDim = 2

// EstimatorConfig holds the filter noise model. Process noise values are
// per NominalDt and are scaled linearly with the actual step.
type EstimatorConfig struct {
	NominalDt         time.Duration
	MaxPredictDt      time.Duration
	ProcessNoisePos   float64
	ProcessNoiseVel   float64
	MeasurementNoise  float64
	InitialCovariance float64
}

// DefaultEstimatorConfig returns the reference 30 fps noise model.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfigFromTuning(config.EmptyTuningConfig())
}

// EstimatorConfigFromTuning builds an EstimatorConfig from a loaded TuningConfig.
func EstimatorConfigFromTuning(cfg *config.TuningConfig) EstimatorConfig {
	return EstimatorConfig{
		NominalDt:         cfg.GetFrameInterval(),
		MaxPredictDt:      cfg.GetMaxPredictInterval(),
		ProcessNoisePos:   cfg.GetProcessNoisePos(),
		ProcessNoiseVel:   cfg.GetProcessNoiseVel(),
		MeasurementNoise:  cfg.GetMeasurementNoise(),
		InitialCovariance: cfg.GetInitialCovariance(),
	}
}

// Estimator is a linear Kalman filter over [x, vx, y, vy] that observes
// position only. The zero value is not usable; call NewEstimator.
//
// Predict and Correct before Init are logged no-ops so that a misuse never
// stops the aiming loop.
type Estimator struct {
	cfg EstimatorConfig

	x *mat.VecDense // state
	p *mat.Dense    // error covariance
	h *mat.Dense    // measurement model
	r *mat.Dense    // measurement noise

	ready bool
}

// NewEstimator creates an uninitialised Estimator.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	if cfg.NominalDt <= 0 {
		cfg.NominalDt = time.Second / 30
	}
	e := &Estimator{
		cfg: cfg,
		x:   mat.NewVecDense(stateDim, nil),
		p:   mat.NewDense(stateDim, stateDim, nil),
		h: mat.NewDense(measDim, stateDim, []float64{
			1, 0, 0, 0,
			0, 0, 1, 0,
		}),
		r: mat.NewDense(measDim, measDim, []float64{
			cfg.MeasurementNoise, 0,
			0, cfg.MeasurementNoise,
		}),
	}
	e.resetCovariance()
	return e
}

// Config returns the estimator's noise model.
func (e *Estimator) Config() EstimatorConfig { return e.cfg }

// Initialized reports whether Init has been called since construction.
func (e *Estimator) Initialized() bool { return e.ready }

// Init starts a new episode at pos with zero velocity and the initial
// covariance.
func (e *Estimator) Init(pos l1lights.Point) {
	e.x.Zero()
	e.x.SetVec(ix, pos.X)
	e.x.SetVec(iy, pos.Y)
	e.resetCovariance()
	e.ready = true
}

func (e *Estimator) resetCovariance() {
	e.p.Zero()
	for i := 0; i < stateDim; i++ {
		e.p.Set(i, i, e.cfg.InitialCovariance)
	}
}

// Predict advances the filter by the nominal frame interval and returns
// the predicted position.
func (e *Estimator) Predict() l1lights.Point {
	return e.PredictDt(e.cfg.NominalDt)
}

// PredictDt advances the filter by dt and returns the predicted position.
// A non-positive dt means one nominal frame; dt is capped at MaxPredictDt.
func (e *Estimator) PredictDt(dt time.Duration) l1lights.Point {
	if !e.ready {
		monitoring.Logf("[Estimator] predict before init ignored")
		return l1lights.Point{}
	}
	dt = e.clampDt(dt)
	secs := dt.Seconds()

	f := transitionMatrix(secs)

	var x mat.VecDense
	x.MulVec(f, e.x)
	e.x = &x

	var fp, p mat.Dense
	fp.Mul(f, e.p)
	p.Mul(&fp, f.T())
	p.Add(&p, e.processNoise(dt))
	e.p = &p

	return e.Position()
}

func (e *Estimator) clampDt(dt time.Duration) time.Duration {
	if dt <= 0 {
		dt = e.cfg.NominalDt
	}
	if e.cfg.MaxPredictDt > 0 && dt > e.cfg.MaxPredictDt {
		dt = e.cfg.MaxPredictDt
	}
	return dt
}

// transitionMatrix is the constant-velocity model for a step of dt seconds.
func transitionMatrix(dt float64) *mat.Dense {
	return mat.NewDense(stateDim, stateDim, []float64{
		1, dt, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, dt,
		0, 0, 0, 1,
	})
}

func (e *Estimator) processNoise(dt time.Duration) *mat.DiagDense {
	scale := float64(dt) / float64(e.cfg.NominalDt)
	qp := e.cfg.ProcessNoisePos * scale
	qv := e.cfg.ProcessNoiseVel * scale
	return mat.NewDiagDense(stateDim, []float64{qp, qv, qp, qv})
}

// Correct folds a position measurement into the estimate.
func (e *Estimator) Correct(z l1lights.Point) {
	if !e.ready {
		monitoring.Logf("[Estimator] correct before init ignored")
		return
	}

	meas := mat.NewVecDense(measDim, []float64{z.X, z.Y})

	var innov mat.VecDense
	innov.MulVec(e.h, e.x)
	innov.SubVec(meas, &innov)

	// S = H P Hᵀ + R
	var pht, s mat.Dense
	pht.Mul(e.p, e.h.T())
	s.Mul(e.h, &pht)
	s.Add(&s, e.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		monitoring.Logf("[Estimator] singular innovation covariance, skipping correction: %v", err)
		return
	}

	var k mat.Dense
	k.Mul(&pht, &sInv)

	var dx mat.VecDense
	dx.MulVec(&k, &innov)
	e.x.AddVec(e.x, &dx)

	// P = (I - K H) P
	var kh, ikh, p mat.Dense
	kh.Mul(&k, e.h)
	ikh.Sub(identity(stateDim), &kh)
	p.Mul(&ikh, e.p)
	e.p = &p
}

func identity(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}

// Position returns the current position estimate.
func (e *Estimator) Position() l1lights.Point {
	return l1lights.Point{X: e.x.AtVec(ix), Y: e.x.AtVec(iy)}
}

// Velocity returns the current velocity estimate in pixels per second.
func (e *Estimator) Velocity() l1lights.Point {
	return l1lights.Point{X: e.x.AtVec(ivx), Y: e.x.AtVec(ivy)}
}

// PositionVariance returns the diagonal covariance terms for x and y.
func (e *Estimator) PositionVariance() (vx, vy float64) {
	return e.p.At(ix, ix), e.p.At(iy, iy)
}
