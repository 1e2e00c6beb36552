package verify

// extractPrompt asks for the verifiable claims in a piece of content.
const extractPrompt = `Extract the verifiable factual claims from the content below.

A verifiable claim can be checked against external sources: names of works,
people, organizations, tools or products, statistics, dates and historical
events. Skip opinions, assessments and vague statements.

Content:
%s

Return ONLY a JSON object (no other text):
{"claims": ["specific factual claim", "..."]}`

// judgePrompt asks for a verdict on one claim given search results.
const judgePrompt = `Based on the search results below, decide whether this claim is true.

CLAIM: %s

SEARCH RESULTS:
%s

Return ONLY a JSON object (no other text):
{"status": "confirmed|disputed|unverified", "explanation": "one sentence"}`
