package generate

import (
	"strings"
)

const editorSystem = `You are a professional editorial assistant. You read one source document and pull out only the facts, insights, and recommendations that matter for an article on the given topic.`

const editorTemplate = `The article being prepared is about:
{{query}}

Rewrite the important content of the document below as one concise, authoritative paragraph that an article writer can use as context. State the facts directly. Never write phrases such as "The article discusses" or "This document is about". If the document has nothing relevant to the topic, return an empty summary.

Respond with JSON only, in the form {"summary": "..."}.

Document:
{{document}}`

const writerSystem = `You are a professional long-form article writer. You turn curated research notes into original, well-structured articles suitable for publication.`

const writerTemplate = `Write a detailed article using the numbered research notes below as your main source material.

Requirements:
- Open with a clear introduction, organize the body under descriptive subheadings, and close with a conclusion or call to action where it fits.
- Format the whole article in Markdown: headings (#, ##, ###), paragraphs, bullet or numbered lists, and emphasis where it helps readability.
- Keep the style professional and precise. Avoid repetition and filler.
- Make the transitions between sections smooth.
- Never mention the research notes themselves.

Research notes:
{{brief}}

Write the complete article in Markdown now.`

func editorPrompt(query, document string) string {
	return strings.NewReplacer("{{query}}", query, "{{document}}", document).Replace(editorTemplate)
}

func writerPrompt(brief string) string {
	return strings.Replace(writerTemplate, "{{brief}}", brief, 1)
}
