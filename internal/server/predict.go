package server

import (
	"net/http"
	"strings"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Predict accepts a CSV upload, forwards it to the crop inference service and
// relays the analysis. Each successful run is recorded as a prediction log
// entry keyed by the dominant crop in the result.
func (s *Server) Predict(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing file upload"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only CSV files are allowed"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unreadable file upload"})
		return
	}
	defer file.Close()

	analysis, err := s.inference.AnalyzeCSV(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if user := currentUser(c); user != nil {
		entry := &domain.PredictionLog{
			UserID:   user.ID,
			Result:   dominantCrop(analysis.Predictions),
			FileName: fileHeader.Filename,
		}
		if err := s.logs.CreatePredictionLog(c.Request.Context(), entry); err != nil {
			s.log.Warn("record prediction failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, analysis)
}

// dominantCrop picks the crop that wins the most rows of the prediction set.
func dominantCrop(predictions []map[string]float64) string {
	counts := map[string]int{}
	for _, row := range predictions {
		best, bestScore := "", -1.0
		for crop, score := range row {
			if score > bestScore || (score == bestScore && crop < best) {
				best, bestScore = crop, score
			}
		}
		if best != "" {
			counts[best]++
		}
	}

	winner, winnerCount := "", 0
	for crop, n := range counts {
		if n > winnerCount || (n == winnerCount && crop < winner) {
			winner, winnerCount = crop, n
		}
	}
	return winner
}
