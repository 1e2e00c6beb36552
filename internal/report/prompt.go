package report

import "github.com/guangtouwangba/open-deep-research/internal/model"

type depthGuide struct {
	style    string
	length   string
	sections string
}

var guides = map[model.Depth]depthGuide{
	model.DepthQuick: {
		style:    "concise and focused",
		length:   "800-1200 words",
		sections: "Executive Summary, Key Findings, Conclusions",
	},
	model.DepthBalanced: {
		style:    "thorough yet readable",
		length:   "1500-2500 words",
		sections: "Executive Summary, Background, Key Findings (by theme), Analysis, Sources, Conclusions",
	},
	model.DepthComprehensive: {
		style:    "in-depth and exhaustive",
		length:   "3000-5000 words",
		sections: "Executive Summary, Introduction & Background, Methodology, Detailed Findings, Critical Analysis, Implications, Limitations, Sources & References, Conclusions & Recommendations",
	},
}

func guideFor(d model.Depth) depthGuide {
	if g, ok := guides[d]; ok {
		return g
	}
	return guides[model.DepthBalanced]
}

const writerSystem = `You are an expert research report writer. Turn analyzed and verified research into a well-structured Markdown report.

Guidelines:
1. Organize by themes, using ## for main sections and ### for subsections
2. Cite sources as [Source: URL]
3. Be objective and note limitations or gaps
4. Use the given current date for any date references
5. Write in the same language as the goal`

// reportPrompt arguments: goal, current date, depth, length, style,
// node analyses, finding count, findings, required sections.
const reportPrompt = `Goal: %s
Current date: %s
Research depth: %s
Required length: %s
Writing style: %s

TASK ANALYSES:
%s

VERIFIED FINDINGS (%d):
%s

REQUIRED SECTIONS:
%s

Synthesize and connect the analyses and findings; do not just list them.

Report:`
