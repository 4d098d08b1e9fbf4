package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// PrepareModel downloads the embedding model if it is not cached locally and
// returns the model path. The cache directory defaults to ./models and can be
// overridden with ENGRAM_MODEL_DIR.
func PrepareModel(modelName string) (string, error) {
	modelDir := os.Getenv("ENGRAM_MODEL_DIR")
	if modelDir == "" {
		modelDir = "./models"
	}
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create model directory: %w", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = "onnx/model.onnx"
		downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
		if err != nil {
			return "", fmt.Errorf("failed to download model: %w", err)
		}
		modelPath = downloadedPath
	}

	return modelPath, nil
}
