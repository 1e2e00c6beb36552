package planner

// planSystem frames every graph-building request.
const planSystem = `You are a research planning expert. You break a goal into a small graph of focused, non-overlapping tasks.`

// planPrompt is the prompt template for goal decomposition.
// Arguments: goal, domain display name, node count, current date.
const planPrompt = `Break this goal into a structured research plan.

Goal:
%s

Domain: %s
Target size: about %d tasks
Current date: %s

Return ONLY a JSON object with this exact structure (no other text):
{
  "tasks": [
    {
      "id": "t1",
      "description": "Specific, answerable task",
      "category": "background",
      "order": 1,
      "priority": 5,
      "dependencies": []
    },
    {
      "id": "t2",
      "description": "Task that builds on t1",
      "category": "analysis",
      "order": 2,
      "priority": 4,
      "dependencies": ["t1"]
    }
  ]
}

Guidelines:
- Group related tasks under the same category (for example background, technical, comparison, outlook)
- "order" is the position within the category; "priority" is 1 (low) to 5 (high)
- Only add a dependency when a task genuinely needs another task's answer
- Never create two tasks asking the same thing
- Write descriptions in the same language as the goal`
