// Command debias trains a classifier with and without adversarial debiasing
// on synthetic data and prints the fairness metrics of both.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
