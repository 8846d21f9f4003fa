package orchestrator

// Specialist is one persona the router can fan a request out to. Its Key
// doubles as the dispatcher role name, so role bindings decide which
// adapter answers for it.
type Specialist struct {
	Key            string
	Name           string
	Description    string
	Keywords       []string
	PromptTemplate string // must contain the {message} placeholder
	Actions        []string
}

// defaultSpecialists returns the built-in specialist table in definition
// order. Order matters: it breaks scoring ties and fixes the concatenation
// order of the fallback synthesis.
func defaultSpecialists() []Specialist {
	return []Specialist{
		{
			Key:         "project_manager",
			Name:        "Project Manager",
			Description: "Project planning, timelines, and resource management",
			Keywords: []string{
				"project", "plan", "timeline", "milestone", "organize",
				"schedule", "resource", "risk", "deadline", "goal",
			},
			PromptTemplate: `You are an experienced Project Manager. Evaluate the user's request from a project management perspective:

User Message: {message}

From a project management angle:
- Which steps are needed?
- What should the timeline look like?
- Which resources are required?
- What are the potential risks?

Give practical, actionable recommendations.`,
			Actions: []string{
				"Define project scope and requirements",
				"Plan the timeline and milestones",
			},
		},
		{
			Key:         "lead_developer",
			Name:        "Lead Developer",
			Description: "Coding, technical decisions, and architecture design",
			Keywords: []string{
				"code", "software", "develop", "technical", "framework",
				"language", "programming", "architecture", "api", "performance", "app",
			},
			PromptTemplate: `You are an experienced Lead Developer. Evaluate the user's request from a technical perspective:

User Message: {message}

From a technical angle:
- Which technologies fit?
- What should the architecture look like?
- What is the development approach?
- What are the technical risks?

Suggest code examples and practical solutions.`,
			Actions: []string{
				"Detail the technical architecture",
				"Set up the development environment",
			},
		},
		{
			Key:         "business_analyst",
			Name:        "Business Analyst",
			Description: "Business requirements, process analysis, and market research",
			Keywords: []string{
				"business", "analysis", "requirement", "process",
				"stakeholder", "value", "workflow",
			},
			PromptTemplate: `You are an experienced Business Analyst. Evaluate the user's request from a business perspective:

User Message: {message}

From a business analysis angle:
- What are the core requirements?
- Which processes are affected?
- Who are the stakeholders?
- What is the business value?

Provide a detailed analysis and recommendations.`,
			Actions: []string{
				"Document the business requirements",
				"Map out the affected processes",
			},
		},
		{
			Key:         "ui_ux_designer",
			Name:        "UI/UX Designer",
			Description: "User experience, interface design, and usability",
			Keywords: []string{
				"design", "interface", "user", "experience", "ui", "ux",
				"prototype", "mobile", "web", "usability",
			},
			PromptTemplate: `You are an experienced UI/UX Designer. Evaluate the user's request from a design perspective:

User Message: {message}

From a design angle:
- What should the user experience be?
- Which interface design principles apply?
- Which design patterns fit?
- What are the usability priorities?

Offer visual and experience recommendations.`,
			Actions: []string{
				"Define the user personas",
				"Prepare wireframes and mockups",
			},
		},
		{
			Key:         "marketing_specialist",
			Name:        "Marketing Specialist",
			Description: "Marketing strategy, audience analysis, and market positioning",
			Keywords: []string{
				"marketing", "audience", "customer", "market",
				"competition", "strategy", "positioning", "brand",
			},
			PromptTemplate: `You are an experienced Marketing Specialist. Evaluate the user's request from a marketing perspective:

User Message: {message}

From a marketing angle:
- Who is the target audience?
- What should the market positioning be?
- What is the competitive landscape?
- What is the marketing strategy?

Provide market-focused analysis and recommendations.`,
			Actions: []string{
				"Deepen the target audience analysis",
				"Run a competitive analysis",
			},
		},
		{
			Key:         "qa_engineer",
			Name:        "QA Engineer",
			Description: "Test strategy, quality assurance, and defect management",
			Keywords: []string{
				"test", "quality", "qa", "bug", "verify", "validation", "automation",
			},
			PromptTemplate: `You are an experienced QA Engineer. Evaluate the user's request from a quality perspective:

User Message: {message}

From a quality angle:
- What should the test strategy be?
- Which test types are needed?
- What are the quality criteria?
- Where are the risk areas?

Propose a test plan and quality recommendations.`,
			Actions: []string{
				"Define the test strategy",
				"Set the quality criteria",
			},
		},
		{
			Key:         "devops_engineer",
			Name:        "DevOps Engineer",
			Description: "Deployment, infrastructure, CI/CD, and operations",
			Keywords: []string{
				"deploy", "deployment", "infrastructure", "ci/cd", "docker",
				"monitoring", "scaling", "server", "cloud", "release",
			},
			PromptTemplate: `You are an experienced DevOps Engineer. Evaluate the user's request from an operations perspective:

User Message: {message}

From a DevOps angle:
- What is the deployment strategy?
- What are the infrastructure requirements?
- What should the CI/CD process look like?
- What about monitoring and alerting?

Propose operational solutions and recommendations.`,
			Actions: []string{
				"Set up the CI/CD pipeline",
				"Prepare the infrastructure plan",
			},
		},
	}
}
