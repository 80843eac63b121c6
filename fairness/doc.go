// Package fairness measures group fairness of labelled and predicted
// datasets.
//
// Dataset metrics look at one dataset's labels:
//
//   - MeanDifference: P(y=fav | unprivileged) − P(y=fav | privileged)
//   - DisparateImpact: P(y=fav | unprivileged) / P(y=fav | privileged)
//
// Classification metrics compare ground truth with predictions
// (see [Evaluate]): accuracy, true positive and negative rates, equal
// opportunity difference, average odds difference and the Theil index.
//
// By default the privileged group is protected = 1 and the favourable
// label is 1; use a [Groups] value to change either.
package fairness
