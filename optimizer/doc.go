// Package optimizer provides the gradient-descent building blocks used to
// train the predictor and the adversary.
//
//   - [Adam] applies bias-corrected Adam updates in place to a flat
//     parameter vector.
//   - [CosineAnnealing] and [InverseDecay] implement [Schedule]; the first
//     drives learning rates, the second the adversary loss weight.
//   - [MeanBCEWithLogits] computes batch-averaged binary cross-entropy and
//     its gradient with respect to the logits.
//
// # Usage
//
//	adam := optimizer.NewAdam(len(params), 0.01)
//	lr := optimizer.NewCosineAnnealing(0.01, totalSteps)
//	for ... {
//	    adam.SetLR(lr.Value())
//	    if err := adam.Update(params, grads); err != nil {
//	        return err
//	    }
//	    lr.Step()
//	}
package optimizer
