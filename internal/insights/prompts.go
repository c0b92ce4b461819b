package insights

import "fmt"

// insightsPromptTemplate is the fixed learning-aid prompt. The generator is
// asked for flashcards, one reflection question (returned but never
// persisted), topical tags, and a short neutral summary.
const insightsPromptTemplate = `You are an assistant that generates concise learning aids.

Given a page with:
Title: "%s"
Description: "%s"
Content: """%s"""

Tasks:
1. Generate 5-10 Q&A flashcards depending on the length of the article.
   - Questions should be clear and concise.
   - Answers should be short (1-3 sentences max).
   - Focus on key ideas, definitions, or takeaways.

2. Suggest 1 reflection question that connects this article to broader knowledge or real-world applications.
   - It should encourage critical thinking, not be fact recall.

3. Suggest 3-5 topical tags for this article.
   - Tags must be short, simple labels suitable for human tagging.
   - Prefer ONE word; allow TWO words only if very common (e.g. "machine learning").
   - No symbols, no hyphens, no jargon, no academic phrases.
   - Use lowercase.
   - Think of tags like those seen on blogs or news sites.
   - Examples:
     Good: ["database", "css", "technews", "women", "games"]
     Acceptable 2 words: ["machine learning", "climate change"]
     Bad: ["database management", "query-operations", "technical-process"]

4. Write a 2-3 sentence neutral summary.

Return JSON in this format:
{
  "summary": "...",
  "flashcards": [
    { "question": "...", "answer": "..." }
  ],
  "reflection": "...",
  "tags": ["...", "..."]
}`

// BuildInsightsPrompt fills the learning-aid prompt for one page. Missing
// content is flagged to the model rather than sent as an empty string.
func BuildInsightsPrompt(title, description, content string) string {
	if content == "" {
		content = "Content unavailable"
	}
	return fmt.Sprintf(insightsPromptTemplate, title, description, content)
}
