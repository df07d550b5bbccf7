// Package placenet provides a small feed-forward network of sigmoid units, trained by plain
// gradient descent on binary labels. It is used to predict student placement from CGPA and IQ,
// though nothing in this package knows about either.
//
// Creating Networks
//
// Networks are described by the number of units in each layer, starting with the inputs:
//
//		net, err := placenet.New(placenet.LayerSpec{2, 2, 1})
//		if err != nil {
//			return err
//		}
//
// A new Network has no parameters. They can be created with Init, given with SetParams, or left
// for Train to initialize. Weights are drawn from a normal distribution with standard deviation
// InitScale (see the subpackage "initializers"), and biases start at zero. The same seed always
// gives the same parameters.
//
// Every weight matrix has one row per unit of its layer and one column per unit of the previous
// layer, so each layer computes
//
//		Z = W·A + b
//		A = sigmoid(Z)
//
// with one column per example. Data given as one row per example can be converted with Examples
// and Labels.
//
// Training and Testing
//
// All training is done with the method Train:
//
//		func (net *Network) Train(ctx context.Context, args TrainArgs) (*History, error)
//
// As with most things here, TrainArgs stands in for optional arguments. Only X, Y, Epochs and
// LearningRate are required. Training can be done in Batch mode (one update per epoch) or Online
// mode (one update per example). Progress is reported through Snapshots, which are given to
// TrainArgs.Sink at epoch 0, every ReportEvery epochs and at the final epoch. If a Renderer is
// given, each Snapshot also carries a drawing of the decision boundary.
//
// Only one run may be in progress on a Network at a time; others fail with ErrAlreadyRunning.
// While a run is in progress, Forward, Predict, Evaluate and Params may be called from other
// goroutines and always see a complete set of parameters. Cancelling ctx stops the run between
// epochs.
//
// Testing is done separately, through Evaluate:
//
//		func (net *Network) Evaluate(x, y mat.Matrix) (Evaluation, error)
//
// which gives the accuracy, confusion matrix, precision, recall and F1 score.
//
// The pieces of the training loop (Forward, Loss, Backward and Update) are also exported, and
// work on bare Params without a Network.
//
// Saving and Loading
//
// Params can be converted to and from plain nested slices, keyed by the names "W1", "b1", etc.:
//
//		func (p Params) Export() map[string][][]float64
//		func ImportParams(spec LayerSpec, values map[string][][]float64) (Params, error)
//
// Writing those to disk is left to the subpackage "store".
package placenet
