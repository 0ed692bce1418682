package generation

import (
	"fmt"
	"strings"

	"github.com/jonathan/article-engine/internal/types"
	"github.com/jonathan/article-engine/internal/workflow"
)

// buildOutlinePrompt constructs the structure-planning prompt.
func buildOutlinePrompt(topic string, cfg *types.Configuration) string {
	var sb strings.Builder

	sb.WriteString("You are an experienced long-form content editor planning a blog article.\n\n")
	sb.WriteString(fmt.Sprintf("Plan an article about: %s\n\n", topic))
	sb.WriteString(fmt.Sprintf("The article must have exactly %d chapters of roughly %d words each.\n\n",
		cfg.ChapterCount, cfg.WordsPerChapter))

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n")
	sb.WriteString(`{
  "title": "engaging article title",
  "meta_description": "one to two sentence SEO description",
  "image_prompt": "a descriptive prompt for a featured illustration",
  "chapters": [
    {
      "title": "chapter title",
      "summary": "what this chapter covers",
      "keywords": ["keyword", "keyword"]
    }
  ]
}`)
	sb.WriteString("\n\nDo not include any text outside the JSON object.")

	return sb.String()
}

// buildSectionPrompt constructs the chapter-writing prompt. priorContext is
// the tail of the article written so far, used to keep chapters coherent and
// avoid repetition.
func buildSectionPrompt(chapter workflow.ChapterSpec, priorContext string, cfg *types.Configuration) string {
	var sb strings.Builder

	sb.WriteString("You are writing one chapter of a long-form blog article.\n\n")
	sb.WriteString(fmt.Sprintf("Chapter title: %s\n", chapter.Title))
	sb.WriteString(fmt.Sprintf("Chapter brief: %s\n", chapter.Summary))
	if len(chapter.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("Work in these keywords naturally: %s\n", strings.Join(chapter.Keywords, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Target length: about %d words.\n\n", cfg.WordsPerChapter))

	if priorContext != "" {
		sb.WriteString("The article so far ends with:\n---\n")
		sb.WriteString(priorContext)
		sb.WriteString("\n---\nContinue naturally from there without repeating it.\n\n")
	}

	sb.WriteString("Write the chapter body as clean HTML using only <p>, <ul>, <li>, <strong> and <em> tags. ")
	sb.WriteString("Do not include the chapter heading; it is added separately. ")
	sb.WriteString("Do not wrap the output in markdown fences.")

	return sb.String()
}
