package recommender

const recommendationSystemPrompt = `You are a helpful AI assistant specialized in learning and content recommendations.`

const recommendationUserPrompt = `Based on the following top learning themes: %s,
suggest 3-5 hypothetical articles, courses, or projects that would be highly relevant.
For each suggestion, provide:
1.  **A catchy title for the content.**
2.  **A brief summary (1-2 sentences) of what it's about.**
3.  **A very short explanation (1 sentence) of how it relates to one or more of the user's existing interests.**

Format your response clearly with numbered bullet points for each suggestion.
`
