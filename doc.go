// Package debias trains a binary classifier with an optional adversarial
// debiasing regularizer.
//
// A [Trainer] owns two models: a predictor that maps a feature vector to a
// label logit, and (when [Config.Debias] is set) an adversary that tries to
// recover the protected attribute from the predictor's output. Training
// alternates between the two: the adversary learns to predict the protected
// attribute, and the predictor learns the label while pushing the
// adversary's loss up.
//
// Basic usage:
//
//	tr, err := debias.NewTrainer(debias.Config{Features: train.Dim(), Debias: true, Seed: 7})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tr.Fit(ctx, train); err != nil {
//	    log.Fatal(err)
//	}
//	pred, err := tr.Predict(test)
//
// The fairness, preprocessing and datasets subpackages provide the metrics,
// feature scaling and synthetic data used around the trainer.
package debias
