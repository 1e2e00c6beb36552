package phase

// queryPrompt asks for search queries. Arguments: task, goal, query count.
const queryPrompt = `Write web search queries that would find evidence for this research task.

Task: %s
Overall goal: %s

Return ONLY a JSON object with at most %d queries (no other text):
{"queries": ["query one", "query two"]}`

// generateSystem frames the primary content call.
const generateSystem = `You are a domain expert writing a grounded, well-structured analysis.`

// generatePrompt produces the node's primary content.
// Arguments: anchored topic, authority sources, overall goal, evidence.
const generatePrompt = `TOPIC: %s
AUTHORITY SOURCES: %s
OVERALL GOAL: %s

EVIDENCE FROM SEARCH:
%s

Write a thorough analysis of the topic.
RULES:
1. Ground claims in the evidence and authority sources above
2. Be specific: name metrics, versions, dates and examples
3. Acknowledge limitations and uncertainty
4. Use the same language as the topic`

// critiqueSystem frames the critique call. Argument: domain display name.
const critiqueSystem = `You are the most rigorous critic in the field of %s. Find weak reasoning, outdated or missing information, unsupported claims and bias.`

// critiquePrompt asks for structured critique. Arguments: topic, anchors, content.
const critiquePrompt = `TOPIC: %s
AUTHORITY SOURCES CLAIMED: %s

CONTENT TO CRITIQUE:
%s

Severity levels: high (fundamentally flawed), medium (significant weakness), low (minor issue).

Return ONLY a JSON object (no other text):
{
  "critiques": [{"severity": "high|medium|low", "issue": "specific criticism", "suggestion": "how to fix it"}],
  "confidence": 0.0,
  "needs_debate": false
}`

// positionPrompt asks one council expert for a position.
// Arguments: expert name, perspective, anchor source, style, topic, content, critique summary.
const positionPrompt = `You are %s, speaking from the perspective of %s. You draw on %s and your style is %s.

TOPIC: %s

CONTENT UNDER DEBATE:
%s

CRITIQUE RAISED SO FAR:
%s

State your position, your key arguments and your rebuttals to the other perspectives.
Return ONLY a JSON object (no other text):
{"position": "your argument", "arguments": ["..."], "rebuttals": ["..."]}`

// synthesisPrompt merges everything into the final node text.
// Arguments: content, critique, claim checks, council, challenges.
const synthesisPrompt = `Synthesize the following into a final, refined analysis.

ORIGINAL CONTENT:
%s

CRITIQUE POINTS:
%s

VERIFICATION RESULTS:
%s
%s
USER CHALLENGES:
%s

RULES:
1. Fix the weaknesses the critique identified
2. Remove or flag unverified claims
3. Weigh the council perspectives, if any
4. Address user challenges directly
5. Keep the language of the original

End with a confidence score between 0.0 and 1.0 on its own line:
CONFIDENCE: X.XX`
