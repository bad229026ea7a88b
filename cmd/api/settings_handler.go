package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// ollamaSettings holds the runtime-configurable local model settings.
// The synthesis service reads them through the getters on every request,
// so updates apply without a restart.
type ollamaSettings struct {
	BaseURL string `json:"ollama_base_url"`
	Model   string `json:"ollama_model,omitempty"`
}

var (
	ollamaRuntime     ollamaSettings
	ollamaRuntimeLock sync.RWMutex
)

// InitRuntimeConfig seeds the runtime settings from the static config
func InitRuntimeConfig(ollamaBaseURL, ollamaModel string) {
	ollamaRuntimeLock.Lock()
	defer ollamaRuntimeLock.Unlock()
	ollamaRuntime = ollamaSettings{
		BaseURL: ollamaBaseURL,
		Model:   ollamaModel,
	}
}

// GetRuntimeOllamaBaseURL returns the current runtime Ollama base URL
func GetRuntimeOllamaBaseURL() string {
	ollamaRuntimeLock.RLock()
	defer ollamaRuntimeLock.RUnlock()
	return ollamaRuntime.BaseURL
}

// GetRuntimeOllamaModel returns the current runtime Ollama model
func GetRuntimeOllamaModel() string {
	ollamaRuntimeLock.RLock()
	defer ollamaRuntimeLock.RUnlock()
	return ollamaRuntime.Model
}

// GetOllamaSettings returns the current local model configuration
// GET /api/settings/ollama
func GetOllamaSettings(c *gin.Context) {
	ollamaRuntimeLock.RLock()
	defer ollamaRuntimeLock.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": ollamaRuntime.BaseURL,
		"ollama_model":    ollamaRuntime.Model,
	})
}

// UpdateOllamaSettings changes the local model configuration at runtime
// PUT /api/settings/ollama
func UpdateOllamaSettings(c *gin.Context) {
	var req struct {
		BaseURL string `json:"ollama_base_url" binding:"required"`
		Model   string `json:"ollama_model,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ollamaRuntimeLock.Lock()
	ollamaRuntime.BaseURL = req.BaseURL
	if req.Model != "" {
		ollamaRuntime.Model = req.Model
	}
	ollamaRuntimeLock.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated",
		"ollama_base_url": req.BaseURL,
		"ollama_model":    GetRuntimeOllamaModel(),
	})
}

// TestOllamaConnection checks whether the Ollama server is reachable
// POST /api/settings/ollama/test
func TestOllamaConnection(c *gin.Context) {
	var req struct {
		BaseURL string `json:"ollama_base_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.BaseURL == "" {
		req.BaseURL = GetRuntimeOllamaBaseURL()
	}

	resp, err := http.Get(req.BaseURL + "/api/tags")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected":   false,
			"status_code": resp.StatusCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.BaseURL,
	})
}
