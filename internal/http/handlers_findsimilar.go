package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sonar/internal/services"
)

func findSimilarHandler(c *fiber.Ctx) error {
	var reqBody SimilarRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return badRequestJSON(c)
	}

	url := strings.TrimSpace(reqBody.URL)
	if url == "" {
		return badRequest(c, "Missing required field 'url'")
	}

	numResults := defaultPerSearch
	if reqBody.NumResults != nil {
		numResults = *reqBody.NumResults
		if numResults < 1 || numResults > maxNumResults {
			return badRequest(c, fmt.Sprintf("Field 'num_results' must be between 1 and %d", maxNumResults))
		}
	}

	excludeSource := true
	if reqBody.ExcludeSourceDomain != nil {
		excludeSource = *reqBody.ExcludeSourceDomain
	}

	idx := c.Locals("indexing").(Indexer)
	res, err := idx.FindSimilar(c.Context(), &services.SimilarRequest{
		URL:                 url,
		NumResults:          numResults,
		IncludeContent:      reqBody.IncludeContent,
		ExcludeSourceDomain: excludeSource,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "FIND_SIMILAR_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(SimilarResponse{
		SourceURL: res.SourceURL,
		Results:   wireResults(res.Results),
		TookMs:    res.TookMs,
		Error:     res.Error,
	})
}
