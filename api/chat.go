package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/services"
	"github.com/napassornsp/chat-new/utils"
)

// FunctionsHandler dispatches named function invocations. The chat
// functions run a full gated turn; unknown names acknowledge without
// side effects so demo frontends can call stubs freely.
// POST /functions/v1/:name
func (h *APIHandler) FunctionsHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	name := c.Param("name")
	if name != "chat" && name != "chat-router" {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"ok": true}})
		return
	}

	var req services.ChatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	result, err := h.chatService.ProcessTurn(user, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"choices":   []gin.H{{"message": gin.H{"role": "assistant", "content": result.Reply}}},
			"chat_id":   result.ChatID,
			"credits":   result.Credits,
			"assistant": result.Assistant,
		},
	})
}

type ocrRequest struct {
	FileName string `json:"file_name"`
}

// AnalyzeBillHandler runs one gated bill extraction.
// POST /ocr/analyze_bill
func (h *APIHandler) AnalyzeBillHandler(c *gin.Context) {
	h.analyze(c, h.ocrService.AnalyzeBill)
}

// AnalyzeBankHandler runs one gated bank statement extraction.
// POST /ocr/analyze_bank
func (h *APIHandler) AnalyzeBankHandler(c *gin.Context) {
	h.analyze(c, h.ocrService.AnalyzeBank)
}

func (h *APIHandler) analyze(c *gin.Context, run func(user *models.User, fileName string) (*services.OCRResult, error)) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	var req ocrRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}

	result, err := run(user, req.FileName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"ok":         true,
		"extraction": result.Extraction,
		"credits":    result.Credits,
	}})
}
