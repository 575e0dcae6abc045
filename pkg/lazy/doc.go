// Package lazy wraps estimators in immutable, content-addressed proxies whose
// training and inference are recorded as deferred tasks in a graph.Graph.
//
// Building a proxy, fitting it, or asking it for predictions never runs the
// model. Every call returns a new value that extends the receiver's graph, and
// nothing executes until a handle is computed with a graph.Scheduler:
//
//	p, err := lazy.New(logistic.New(logistic.WithC(1000)))
//	fitted := p.Fit(X, y, nil)
//	pred, err := fitted.Predict(chunkedX).Compute(ctx)
//
// Proxy keys are fingerprints of their content, so equal proxies built
// independently share keys and a caching scheduler computes them once.
// Failures raised by the wrapped estimator during computation, such as
// domain.NotFittedError, are returned by Compute unchanged.
package lazy
