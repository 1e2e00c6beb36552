package domain

func builtins() []Domain {
	return []Domain{
		{
			Name:        General,
			DisplayName: "General research",
			AuthoritySources: []SourceGroup{
				{Topic: "academic research", Sources: []string{
					"peer-reviewed journal articles",
					"survey papers and systematic reviews",
					"university and government publications",
				}},
			},
			AnchorTemplates: []string{
				"Based on {sources}, analyze {topic}",
			},
		},
		{
			Name:        "research",
			DisplayName: "Academic and industry research",
			Keywords: []string{
				"research", "survey", "analysis", "review", "investigate",
				"paper", "literature", "trend", "state of",
			},
			AuthoritySources: []SourceGroup{
				{Topic: "academic study paper", Sources: []string{
					"arXiv preprints",
					"Google Scholar top-cited papers",
					"Nature/Science review articles",
					"IEEE/ACM conference proceedings",
				}},
				{Topic: "industry market", Sources: []string{
					"Gartner Magic Quadrant",
					"McKinsey/BCG industry reports",
					"public company annual reports",
				}},
				{Topic: "technology trend", Sources: []string{
					"ThoughtWorks Technology Radar",
					"CNCF Landscape",
					"Stack Overflow Developer Survey",
					"GitHub Octoverse Report",
				}},
			},
			AnchorTemplates: []string{
				"Drawing on recent work from {sources}, systematically analyze {topic}",
				"Using the methodology of {source}, assess the current state and trends of {topic}",
			},
			VerificationRules: []string{
				"Papers must carry a DOI or arXiv ID",
				"Statistics must link to the original report or survey",
				"Trend claims must cite data from the last two years",
			},
			Experts: []Expert{
				{Name: "Domain scholar", Perspective: "Academic rigor and theoretical depth", AnchorSource: "peer-reviewed publications", Style: "rigorous, data driven"},
				{Name: "Methodology critic", Perspective: "Research method and bias detection", AnchorSource: "statistics and experimental design", Style: "skeptical, probes causality"},
				{Name: "Applied practitioner", Perspective: "Practical value of the findings", AnchorSource: "industry case studies", Style: "pragmatic, ROI focused"},
			},
			MultiPerspectiveTopics: []string{"controvers", "debate", "disagree", "dispute"},
		},
		{
			Name:        "tech-eval",
			DisplayName: "Technology evaluation",
			Keywords: []string{
				"vs", "versus", "compare", "evaluate", "choose", "select",
				"architecture", "stack", "migrate", "benchmark",
				"kafka", "redis", "postgres", "mysql", "kubernetes", "docker",
			},
			AuthoritySources: []SourceGroup{
				{Topic: "database storage sql", Sources: []string{
					"DB-Engines Ranking",
					"official vendor benchmark documentation",
					"Jepsen consistency analysis reports",
				}},
				{Topic: "queue messaging streaming kafka", Sources: []string{
					"Confluent documentation and benchmarks",
					"RabbitMQ performance documentation",
					"engineering blogs from large-scale adopters",
				}},
				{Topic: "cloud kubernetes container native", Sources: []string{
					"CNCF Annual Survey",
					"ThoughtWorks Technology Radar",
					"AWS Well-Architected Framework",
				}},
				{Topic: "language programming runtime", Sources: []string{
					"TechEmpower Framework Benchmarks",
					"Computer Language Benchmarks Game",
					"Stack Overflow Developer Survey",
				}},
			},
			AnchorTemplates: []string{
				"Compare the official benchmark data from {sources} to evaluate {topic}",
				"Following {source} best practices and production reports, analyze {topic}",
			},
			VerificationRules: []string{
				"Benchmarks must link to a reproducible methodology",
				"Performance claims must state the hardware and configuration used",
				"Adoption claims must name specific companies or projects",
			},
			Experts: []Expert{
				{Name: "Systems architect", Perspective: "Maintainability and long-term evolution", AnchorSource: "Martin Fowler/ThoughtWorks", Style: "cautious about technical debt"},
				{Name: "SRE", Perspective: "Operational cost, observability and recovery", AnchorSource: "Google SRE Book and incident reviews", Style: "plans for the worst case"},
				{Name: "Application developer", Perspective: "Developer experience and ecosystem maturity", AnchorSource: "GitHub issues and community activity", Style: "pragmatic"},
			},
			MultiPerspectiveTopics: []string{" vs ", "versus", "compare", "which is better"},
		},
	}
}
