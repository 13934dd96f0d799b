package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint bundles serialized model weights with training progress so a
// run can resume or ship its best model. ModelState holds the network's own
// JSON bundle untouched.
type Checkpoint struct {
	ModelState string `json:"model_state"`

	TrainingState TrainingState `json:"training_state"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// TrainingState captures the training progress at save time. Threshold and
// the label assignment belong here because the correction loop is stateful:
// resuming without them would restart relabeling from scratch.
type TrainingState struct {
	Epoch           int     `json:"epoch"`
	LearningRate    float64 `json:"learning_rate"`
	BestValAccuracy float64 `json:"best_val_accuracy"`
	BestEpoch       int     `json:"best_epoch"`
	Threshold       float64 `json:"threshold"`
	Labels          []int   `json:"labels,omitempty"`
}

// CheckpointMetadata contains checkpoint provenance.
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// CheckpointSaver handles saving and loading JSON checkpoints.
type CheckpointSaver struct{}

// NewCheckpointSaver creates a checkpoint saver.
func NewCheckpointSaver() *CheckpointSaver {
	return &CheckpointSaver{}
}

// SaveCheckpoint writes a checkpoint to path, creating parent directories as
// needed.
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint must be non-nil")
	}
	if checkpoint.ModelState == "" {
		return fmt.Errorf("checkpoint has no model state")
	}

	if checkpoint.Metadata.CreatedAt.IsZero() {
		checkpoint.Metadata.CreatedAt = time.Now()
	}
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "relabel"
	}
	if checkpoint.Metadata.Version == "" {
		checkpoint.Metadata.Version = "1.0"
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}

	return nil
}

// LoadCheckpoint reads a checkpoint from path.
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %v", err)
	}
	if checkpoint.ModelState == "" {
		return nil, fmt.Errorf("checkpoint at %s has no model state", path)
	}

	return &checkpoint, nil
}
