package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sonar/internal/services"
)

const (
	defaultAnswerSources = 5
	maxAnswerSources     = 10
)

func answerHandler(c *fiber.Ctx) error {
	var reqBody AnswerRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return badRequestJSON(c)
	}

	query := strings.TrimSpace(reqBody.Query)
	if query == "" {
		return badRequest(c, "Missing required field 'query'")
	}
	if len(query) > maxQueryLen {
		return badRequest(c, fmt.Sprintf("Field 'query' exceeds %d characters", maxQueryLen))
	}

	numSources := defaultAnswerSources
	if reqBody.NumSources != nil {
		numSources = *reqBody.NumSources
		if numSources < 1 || numSources > maxAnswerSources {
			return badRequest(c, fmt.Sprintf("Field 'num_sources' must be between 1 and %d", maxAnswerSources))
		}
	}

	includeCitations := true
	if reqBody.IncludeCitations != nil {
		includeCitations = *reqBody.IncludeCitations
	}

	// Answering runs a search plus a generation; charge the second
	// quota unit here (the first is charged by auth).
	if keyID := authedKeyID(c); keyID != "" {
		backend := c.Locals("backend").(Backend)
		_ = backend.IncrementAPIKeyQuota(c.Context(), keyID, 1)
	}

	ans := c.Locals("answerer").(Answering)
	res, err := ans.Answer(c.Context(), &services.AnswerRequest{
		Query:            query,
		NumSources:       numSources,
		IncludeCitations: includeCitations,
		APIKeyID:         authedKeyID(c),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "ANSWER_FAILED",
			Error:   err.Error(),
		})
	}

	citations := make([]Citation, 0, len(res.Citations))
	for _, cit := range res.Citations {
		citations = append(citations, Citation{URL: cit.URL, Title: cit.Title, Snippet: cit.Snippet})
	}

	return c.JSON(AnswerResponse{
		Query:     res.Query,
		Answer:    res.Answer,
		Citations: citations,
		TookMs:    res.TookMs,
	})
}
