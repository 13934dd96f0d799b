package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SBGermi/relabel/checkpoints"
	"github.com/SBGermi/relabel/training"
	"github.com/SBGermi/relabel/vision/dataloader"
	"github.com/SBGermi/relabel/vision/dataset"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run a noisy-label training session",
	Long: `Train a classifier with rolling label correction. With --data the
images come from a folder with one subdirectory per class; without it a
synthetic cluster dataset with injected symmetric label noise is generated,
which is useful for exercising the correction loop without a corpus.`,
	RunE: runTrain,
}

func init() {
	flags := trainCmd.Flags()

	flags.String("data", "", "image folder root, one subdirectory per class (empty for synthetic data)")
	flags.Int("epochs", 100, "number of training epochs")
	flags.Int("batch-size", 128, "batch size (trailing partial batches are dropped)")
	flags.Float64("lr", 0.1, "base learning rate")
	flags.Float64("momentum", 0.9, "SGD momentum")
	flags.IntSlice("milestones", []int{50, 75}, "epochs at which the learning rate decays")
	flags.Float64("gamma", 0.2, "learning rate decay factor")
	flags.Int64("seed", 77, "random seed")

	flags.Int("history", 30, "number of recent epochs of predictions to retain")
	flags.Int("top-k", 10, "number of best validation epochs to average")
	flags.Int("warmup", 40, "epoch at which label correction starts")
	flags.Float64("threshold", 0.3, "initial correction confidence threshold")
	flags.Float64("increment", 0.1, "threshold increase per correction pass")

	flags.Int("image-size", 32, "square size images are resized to")
	flags.Int("cache-size", 4096, "decoded image tensors to keep in memory")
	flags.Float64("val-split", 0.1, "fraction of the data held out for validation")

	flags.Int("synthetic-samples", 2000, "synthetic mode: number of examples")
	flags.Int("synthetic-classes", 10, "synthetic mode: number of classes")
	flags.Float64("noise-rate", 0.3, "synthetic mode: symmetric label noise rate")

	flags.String("checkpoint", "", "path to write the best-model checkpoint")

	viper.BindPFlags(flags)
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	rng := rand.New(rand.NewSource(viper.GetInt64("seed")))

	config := training.Config{
		Epochs:             viper.GetInt("epochs"),
		BatchSize:          viper.GetInt("batch-size"),
		BaseLR:             viper.GetFloat64("lr"),
		HistoryDepth:       viper.GetInt("history"),
		TopK:               viper.GetInt("top-k"),
		WarmupEpochs:       viper.GetInt("warmup"),
		InitialThreshold:   viper.GetFloat64("threshold"),
		ThresholdIncrement: viper.GetFloat64("increment"),
		PrintEvery:         50,
	}

	var (
		trainSet training.TrainDataset
		valSet   training.Dataset
		model    training.Model
		err      error
	)
	if root := viper.GetString("data"); root != "" {
		trainSet, valSet, model, err = buildFolderRun(root, config.BatchSize, rng)
	} else {
		trainSet, valSet, model, err = buildSyntheticRun(config.BatchSize, rng)
	}
	if err != nil {
		return err
	}

	scheduler := training.NewMultiStepLRScheduler(viper.GetIntSlice("milestones"), viper.GetFloat64("gamma"))

	trainer, err := training.NewTrainer(model, trainSet, scheduler, config, rng)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := trainer.Run(valSet); err != nil {
		return err
	}

	bestAcc, bestEpoch := trainer.Best()
	fmt.Printf("Training complete in %v. Best validation accuracy %.2f%% at epoch %d.\n",
		time.Since(start).Round(time.Second), bestAcc, bestEpoch+1)

	if err := trainer.RestoreBest(); err != nil {
		return err
	}
	finalAcc, err := trainer.Evaluate(valSet)
	if err != nil {
		return err
	}
	fmt.Printf("Held-out accuracy with best weights: %.2f%%\n", finalAcc)

	if path := viper.GetString("checkpoint"); path != "" {
		checkpoint := &checkpoints.Checkpoint{
			ModelState: trainer.BestState(),
			TrainingState: checkpoints.TrainingState{
				Epoch:           config.Epochs,
				LearningRate:    scheduler.GetLR(config.Epochs-1, config.BaseLR),
				BestValAccuracy: bestAcc,
				BestEpoch:       bestEpoch,
				Threshold:       trainer.Threshold(),
				Labels:          trainSet.Labels(),
			},
			Metadata: checkpoints.CheckpointMetadata{
				Description: "best validation model with corrected label assignment",
			},
		}
		if err := checkpoints.NewCheckpointSaver().SaveCheckpoint(checkpoint, path); err != nil {
			return err
		}
		fmt.Printf("Checkpoint written to %s\n", path)
	}

	return nil
}

// buildFolderRun wires an on-disk image corpus: folder discovery, a held-out
// validation split, cached decoding, and a convolutional classifier.
func buildFolderRun(root string, batchSize int, rng *rand.Rand) (training.TrainDataset, training.Dataset, training.Model, error) {
	folder, err := dataset.NewImageFolderDataset(root, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	valSplit := viper.GetFloat64("val-split")
	if valSplit <= 0 || valSplit >= 1 {
		return nil, nil, nil, fmt.Errorf("validation split must be in (0, 1), got %g", valSplit)
	}
	trainFolder, valFolder := folder.Split(1-valSplit, true, rng)

	imageSize := viper.GetInt("image-size")
	cacheSize := viper.GetInt("cache-size")

	trainSet, err := dataloader.NewDecodedImageDataset(trainFolder, imageSize, cacheSize)
	if err != nil {
		return nil, nil, nil, err
	}
	valSet, err := dataloader.NewDecodedImageDataset(valFolder, imageSize, cacheSize)
	if err != nil {
		return nil, nil, nil, err
	}

	fmt.Printf("Loaded %d images in %d classes (%d train, %d validation)\n",
		folder.Len(), folder.NumClasses(), trainSet.Len(), valSet.Len())

	model, err := training.NewConvClassifier(3, imageSize, imageSize, folder.NumClasses(), batchSize, viper.GetFloat64("momentum"))
	if err != nil {
		return nil, nil, nil, err
	}

	return trainSet, valSet, model, nil
}

// buildSyntheticRun generates Gaussian class clusters, injects symmetric
// label noise into the training split, and pairs them with a small MLP.
func buildSyntheticRun(batchSize int, rng *rand.Rand) (training.TrainDataset, training.Dataset, training.Model, error) {
	samples := viper.GetInt("synthetic-samples")
	numClasses := viper.GetInt("synthetic-classes")
	noiseRate := viper.GetFloat64("noise-rate")
	if samples <= 0 || numClasses < 2 {
		return nil, nil, nil, fmt.Errorf("invalid synthetic dataset: %d samples, %d classes", samples, numClasses)
	}

	const featureDim = 32

	centers := make([][]float32, numClasses)
	for c := range centers {
		centers[c] = make([]float32, featureDim)
		for j := range centers[c] {
			centers[c][j] = float32(rng.NormFloat64()) * 2
		}
	}

	makeSplit := func(n int) ([][]float32, []int) {
		data := make([][]float32, n)
		labels := make([]int, n)
		for i := 0; i < n; i++ {
			class := rng.Intn(numClasses)
			features := make([]float32, featureDim)
			for j := range features {
				features[j] = centers[class][j] + float32(rng.NormFloat64())*0.5
			}
			data[i] = features
			labels[i] = class
		}
		return data, labels
	}

	valSamples := samples / 10
	if valSamples < batchSize {
		valSamples = batchSize
	}

	trainData, cleanLabels := makeSplit(samples)
	noisyLabels, err := dataset.InjectSymmetricNoise(cleanLabels, numClasses, noiseRate, rng)
	if err != nil {
		return nil, nil, nil, err
	}
	trainSet, err := dataset.NewTensorDataset(trainData, noisyLabels, numClasses)
	if err != nil {
		return nil, nil, nil, err
	}

	valData, valLabels := makeSplit(valSamples)
	valSet, err := dataset.NewTensorDataset(valData, valLabels, numClasses)
	if err != nil {
		return nil, nil, nil, err
	}

	fmt.Printf("Generated %d synthetic examples in %d classes (%.0f%% label noise)\n",
		samples, numClasses, noiseRate*100)

	model, err := training.NewMLPClassifier(featureDim, []int{64, 32}, numClasses, batchSize, viper.GetFloat64("momentum"))
	if err != nil {
		return nil, nil, nil, err
	}

	return trainSet, valSet, model, nil
}
