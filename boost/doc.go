// Package boost implements gradient-boosted regression trees with second-order
// updates on squared error.
//
// Each round fits a depth-limited tree to the gradients of the current ensemble.
// Leaf weights are -G/(H+lambda), splits must gain more than gamma, and every tree
// is shrunk by eta before it is added. Row subsampling uses a fixed seed so a fit
// is reproducible.
//
// Example:
//
//	model := boost.New(boost.DefaultConfig())
//	if err := model.Fit(X, y); err != nil {
//		log.Fatal(err)
//	}
//	yhat := model.Predict(x)
package boost
