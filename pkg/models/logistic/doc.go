// Package logistic provides a small multinomial logistic regression
// classifier that satisfies domain.Estimator.
//
// It is the reference model used to exercise lazy proxies end to end and is
// trained with plain full-batch gradient descent.
package logistic
