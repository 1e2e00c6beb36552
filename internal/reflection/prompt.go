package reflection

// reflectSystem frames every coverage evaluation.
const reflectSystem = `You are a research quality evaluator. You assess research coverage and decide whether more research is needed.

Guidelines:
1. Evaluate coverage of every task in the plan
2. Identify knowledge gaps or missing information
3. Flag conflicting information that needs resolution
4. Propose new tasks only for real gaps
5. Answer in the same language as the goal`

// reflectPrompt asks for a completeness verdict.
// Arguments: goal, iteration, budget, task status JSON, findings summary.
const reflectPrompt = `Goal: %s
Iteration: %d/%d

Tasks and their findings:
%s

Findings summary:
%s

Return ONLY a JSON object (no other text):
{
  "complete": true,
  "gaps": ["missing information"],
  "new_tasks": [
    {"description": "focused research task", "category": "general", "dependencies": ["existing task id"]}
  ],
  "reasoning": "short explanation"
}`
