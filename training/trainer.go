package training

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/SBGermi/relabel/correction"
)

// Config holds the training-run configuration. The defaults mirror the
// reference noisy-label setup: 30 retained epochs, top 10 by validation
// accuracy, correction from epoch 40, threshold 0.3 rising by 0.1.
type Config struct {
	Epochs             int
	BatchSize          int
	BaseLR             float64
	HistoryDepth       int
	TopK               int
	WarmupEpochs       int
	InitialThreshold   float64
	ThresholdIncrement float64
	PrintEvery         int // batches between progress lines, 0 disables
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:             100,
		BatchSize:          128,
		BaseLR:             0.1,
		HistoryDepth:       30,
		TopK:               10,
		WarmupEpochs:       40,
		InitialThreshold:   0.3,
		ThresholdIncrement: 0.1,
	}
}

// Trainer drives epoch-sequential training with label correction. Each epoch
// it trains the model, records per-example softmax outputs into the
// prediction history and validation accuracy into the ledger; once past the
// warm-up it averages the top-K validation epochs' predictions, runs the
// correction engine against the original labels, and overwrites the
// dataset's working labels with the result.
type Trainer struct {
	model     Model
	trainSet  TrainDataset
	scheduler LRScheduler
	config    Config
	rng       *rand.Rand

	history  *correction.History
	ledger   *correction.Ledger
	selector *correction.Selector
	engine   *correction.Engine

	metrics    []EpochMetrics
	bestValAcc float64
	bestEpoch  int
	bestState  string
}

// NewTrainer wires a trainer from its collaborators. The model's class count
// must match the dataset's.
func NewTrainer(model Model, trainSet TrainDataset, scheduler LRScheduler, config Config, rng *rand.Rand) (*Trainer, error) {
	if model == nil || trainSet == nil {
		return nil, fmt.Errorf("model and train dataset must be non-nil")
	}
	if scheduler == nil {
		scheduler = &ConstantLRScheduler{}
	}
	if rng == nil {
		return nil, fmt.Errorf("random source must be non-nil")
	}
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epoch count must be positive, got %d", config.Epochs)
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.BaseLR <= 0 {
		return nil, fmt.Errorf("base learning rate must be positive, got %g", config.BaseLR)
	}
	if config.WarmupEpochs < 0 {
		return nil, fmt.Errorf("warm-up epochs must be non-negative, got %d", config.WarmupEpochs)
	}
	if model.NumClasses() != trainSet.NumClasses() {
		return nil, fmt.Errorf("model has %d classes, dataset has %d", model.NumClasses(), trainSet.NumClasses())
	}

	history, err := correction.NewHistory(config.HistoryDepth, trainSet.Len(), trainSet.NumClasses())
	if err != nil {
		return nil, err
	}
	ledger, err := correction.NewLedger(config.HistoryDepth)
	if err != nil {
		return nil, err
	}
	selector, err := correction.NewSelector(ledger, history, config.TopK)
	if err != nil {
		return nil, err
	}
	engine, err := correction.NewEngine(config.InitialThreshold, config.ThresholdIncrement)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		model:      model,
		trainSet:   trainSet,
		scheduler:  scheduler,
		config:     config,
		rng:        rng,
		history:    history,
		ledger:     ledger,
		selector:   selector,
		engine:     engine,
		bestValAcc: -1,
		bestEpoch:  -1,
	}, nil
}

// Run executes the full training loop against a validation set.
func (t *Trainer) Run(valSet Dataset) error {
	if valSet == nil {
		return fmt.Errorf("validation dataset must be non-nil")
	}

	trainLoader, err := NewDataLoader(t.trainSet, t.config.BatchSize, true, true, t.rng)
	if err != nil {
		return err
	}
	if trainLoader.Len() == 0 {
		return fmt.Errorf("train dataset of %d examples yields no full batches of %d", t.trainSet.Len(), t.config.BatchSize)
	}

	fmt.Printf("Starting training for %d epochs (%s, correction from epoch %d)\n",
		t.config.Epochs, t.scheduler.GetName(), t.config.WarmupEpochs)

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		epochStart := time.Now()

		trainLoss, trainAcc, err := t.trainEpoch(trainLoader, epoch)
		if err != nil {
			return fmt.Errorf("training epoch %d failed: %w", epoch, err)
		}

		valAcc, err := t.Evaluate(valSet)
		if err != nil {
			return fmt.Errorf("validation epoch %d failed: %w", epoch, err)
		}
		if err := t.ledger.Record(epoch, valAcc); err != nil {
			return err
		}

		if valAcc > t.bestValAcc {
			state, err := t.model.Snapshot()
			if err != nil {
				return fmt.Errorf("failed to snapshot best model: %w", err)
			}
			t.bestValAcc = valAcc
			t.bestEpoch = epoch
			t.bestState = state
		}

		relabeled := 0
		if epoch >= t.config.WarmupEpochs {
			relabeled, err = t.correctLabels()
			if err != nil {
				return fmt.Errorf("label correction after epoch %d failed: %w", epoch, err)
			}
		}

		m := EpochMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			ValidAccuracy: valAcc,
			Threshold:     t.engine.Threshold(),
			Relabeled:     relabeled,
			Duration:      time.Since(epochStart),
		}
		t.metrics = append(t.metrics, m)
		t.printEpochSummary(m)
	}

	return nil
}

// trainEpoch runs one pass over the training loader, feeding the prediction
// history as it goes.
func (t *Trainer) trainEpoch(loader *DataLoader, epoch int) (float64, float64, error) {
	numClasses := t.model.NumClasses()
	lr := t.scheduler.GetLR(epoch, t.config.BaseLR)

	var totalLoss float64
	var totalCorrect, totalSamples, batchCount int

	loader.Reset()
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, err
		}
		if batch == nil {
			break
		}
		batchSize := batch.Size()

		scores, err := t.model.Forward(batch.Data, batchSize)
		if err != nil {
			return 0, 0, fmt.Errorf("forward pass failed: %w", err)
		}

		// Softmax each row, record it against the example's dataset index,
		// and accumulate the combined softmax/cross-entropy gradient.
		probs := make([][]float64, batchSize)
		grad := make([]float32, len(scores))
		row := make([]float64, numClasses)
		for i := 0; i < batchSize; i++ {
			for j := 0; j < numClasses; j++ {
				row[j] = float64(scores[i*numClasses+j])
			}
			probs[i] = correction.Softmax(row)

			label := batch.Labels[i]
			p := probs[i][label]
			if p < 1e-12 {
				p = 1e-12
			}
			totalLoss += -math.Log(p)

			for j := 0; j < numClasses; j++ {
				target := 0.0
				if j == label {
					target = 1.0
				}
				grad[i*numClasses+j] = float32((probs[i][j] - target) / float64(batchSize))
			}
		}

		if err := t.history.Record(epoch, batch.Indices, probs); err != nil {
			return 0, 0, fmt.Errorf("failed to record predictions: %w", err)
		}

		if err := t.model.Backward(grad); err != nil {
			return 0, 0, fmt.Errorf("backward pass failed: %w", err)
		}
		t.model.ApplyGradients(lr)

		totalCorrect += countCorrect(scores, batch.Labels, numClasses)
		totalSamples += batchSize
		batchCount++

		if t.config.PrintEvery > 0 && batchCount%t.config.PrintEvery == 0 {
			fmt.Printf("Epoch %d, Batch %d: Loss=%.4f, Acc=%.2f%%\n",
				epoch, batchCount,
				totalLoss/float64(totalSamples),
				float64(totalCorrect)/float64(totalSamples)*100.0)
		}
	}

	if totalSamples == 0 {
		return 0, 0, fmt.Errorf("epoch %d processed no samples", epoch)
	}

	return totalLoss / float64(totalSamples), float64(totalCorrect) / float64(totalSamples) * 100.0, nil
}

// Evaluate computes accuracy (percent) over a dataset without updating the
// model.
func (t *Trainer) Evaluate(ds Dataset) (float64, error) {
	loader, err := NewDataLoader(ds, t.config.BatchSize, false, false, nil)
	if err != nil {
		return 0, err
	}

	numClasses := t.model.NumClasses()
	var totalCorrect, totalSamples int

	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return 0, err
		}
		if batch == nil {
			break
		}

		scores, err := t.model.Forward(batch.Data, batch.Size())
		if err != nil {
			return 0, fmt.Errorf("evaluation forward pass failed: %w", err)
		}

		totalCorrect += countCorrect(scores, batch.Labels, numClasses)
		totalSamples += batch.Size()
	}

	if totalSamples == 0 {
		return 0, fmt.Errorf("evaluation dataset is empty")
	}

	return float64(totalCorrect) / float64(totalSamples) * 100.0, nil
}

// correctLabels runs one correction invocation and applies the revised
// assignment to the dataset. Returns how many working labels changed.
func (t *Trainer) correctLabels() (int, error) {
	avg := t.selector.AverageSelected()

	revised, _, err := t.engine.Correct(t.trainSet.OriginalLabels(), avg)
	if err != nil {
		return 0, err
	}

	current := t.trainSet.Labels()
	changed := 0
	for i := range revised {
		if revised[i] != current[i] {
			changed++
		}
	}

	if err := t.trainSet.SetLabels(revised); err != nil {
		return 0, err
	}

	return changed, nil
}

func (t *Trainer) printEpochSummary(m EpochMetrics) {
	fmt.Printf("Epoch %d/%d: Train Loss=%.4f, Train Acc=%.2f%%, Val Acc=%.2f%%",
		m.Epoch+1, t.config.Epochs, m.TrainLoss, m.TrainAccuracy, m.ValidAccuracy)
	if m.Epoch >= t.config.WarmupEpochs {
		fmt.Printf(", Threshold=%.2f, Relabeled=%d", m.Threshold, m.Relabeled)
	}
	fmt.Printf(", Time=%v\n", m.Duration.Round(time.Millisecond))
}

// Metrics returns the per-epoch metrics recorded so far.
func (t *Trainer) Metrics() []EpochMetrics {
	return t.metrics
}

// Best returns the highest validation accuracy seen and its epoch.
func (t *Trainer) Best() (float64, int) {
	return t.bestValAcc, t.bestEpoch
}

// BestState returns the serialized weights of the best-validation model, or
// empty if no epoch has completed.
func (t *Trainer) BestState() string {
	return t.bestState
}

// RestoreBest loads the best-validation weights back into the model, the
// usual final step before test evaluation.
func (t *Trainer) RestoreBest() error {
	if t.bestState == "" {
		return fmt.Errorf("no best model recorded yet")
	}
	return t.model.Restore(t.bestState)
}

// Threshold returns the correction engine's current threshold.
func (t *Trainer) Threshold() float64 {
	return t.engine.Threshold()
}
