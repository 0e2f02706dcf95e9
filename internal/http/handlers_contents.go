package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"sonar/internal/services"
)

const maxContentURLs = 10

func contentsHandler(c *fiber.Ctx) error {
	var reqBody ContentsRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return badRequestJSON(c)
	}

	if len(reqBody.URLs) == 0 {
		return badRequest(c, "Missing required field 'urls'")
	}
	if len(reqBody.URLs) > maxContentURLs {
		return badRequest(c, fmt.Sprintf("Field 'urls' accepts at most %d entries", maxContentURLs))
	}
	for _, u := range reqBody.URLs {
		if u == "" {
			return badRequest(c, "Field 'urls' contains an empty entry")
		}
	}

	includeMarkdown := true
	if reqBody.IncludeMarkdown != nil {
		includeMarkdown = *reqBody.IncludeMarkdown
	}

	idx := c.Locals("indexing").(Indexer)
	res, err := idx.GetContents(c.Context(), &services.ContentsRequest{
		URLs:             reqBody.URLs,
		IncludeMarkdown:  includeMarkdown,
		IncludeSummary:   reqBody.IncludeSummary,
		SummaryMaxLength: reqBody.SummaryMaxLength,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "CONTENTS_FAILED",
			Error:   err.Error(),
		})
	}

	results := make([]ContentResult, 0, len(res.Results))
	for _, r := range res.Results {
		results = append(results, ContentResult{
			URL:           r.URL,
			Title:         r.Title,
			Content:       r.Content,
			Markdown:      r.Markdown,
			Summary:       r.Summary,
			Author:        r.Author,
			PublishedDate: r.PublishedAt,
			Status:        r.Status,
			Error:         r.Error,
		})
	}

	return c.JSON(ContentsResponse{Results: results, TookMs: res.TookMs})
}
