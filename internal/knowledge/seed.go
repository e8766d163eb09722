package knowledge

// SeedDocuments is the default placement-guidance corpus loaded at startup.
func SeedDocuments() []Document {
	return []Document{
		{
			Content:  "Resume tips: Keep it to 1-2 pages. Use action verbs. Quantify achievements. Include relevant projects. Tailor to each job. Proofread carefully.",
			Source:   "resume_guide",
			Metadata: map[string]string{"category": "resume", "domain": "general"},
		},
		{
			Content:  "Common interview questions for software developers: Tell me about yourself, explain your projects, coding challenges, system design, behavioral questions about teamwork and problem-solving.",
			Source:   "interview_guide",
			Metadata: map[string]string{"category": "interview", "domain": "software_development"},
		},
		{
			Content:  "Data Structures to master: Arrays, Linked Lists, Stacks, Queues, Trees, Graphs, Hash Tables, Heaps. Practice on LeetCode, HackerRank, CodeForces.",
			Source:   "dsa_guide",
			Metadata: map[string]string{"category": "technical_skills", "domain": "software_development"},
		},
		{
			Content:  "AI/ML interview preparation: Know ML algorithms, understand bias-variance tradeoff, explain model evaluation metrics, discuss real projects, understand MLOps and deployment.",
			Source:   "aiml_guide",
			Metadata: map[string]string{"category": "interview", "domain": "ai_ml"},
		},
		{
			Content:  "VLSI interview topics: RTL design flow, synthesis, verification methodologies, timing analysis, low-power design techniques, EDA tools experience.",
			Source:   "vlsi_guide",
			Metadata: map[string]string{"category": "interview", "domain": "vlsi"},
		},
		{
			Content:  "Embedded systems skills: C/C++ programming, microcontroller architecture, RTOS concepts, communication protocols (UART, SPI, I2C), hardware debugging.",
			Source:   "embedded_guide",
			Metadata: map[string]string{"category": "technical_skills", "domain": "embedded"},
		},
		{
			Content:  "Mechanical engineering interviews: CAD modeling skills, manufacturing processes, material science, thermodynamics concepts, real project experience with FEA/CFD.",
			Source:   "mechanical_guide",
			Metadata: map[string]string{"category": "interview", "domain": "mechanical"},
		},
		{
			Content:  "Soft skills for placements: Communication clarity, active listening, teamwork, leadership examples, time management, adaptability, problem-solving approach.",
			Source:   "softskills_guide",
			Metadata: map[string]string{"category": "soft_skills", "domain": "soft_skills"},
		},
		{
			Content:  "Top tech companies for software roles: Google, Microsoft, Amazon, Apple, Meta, Netflix, Adobe, Salesforce. Prepare for their specific interview patterns.",
			Source:   "companies_guide",
			Metadata: map[string]string{"category": "companies", "domain": "software_development"},
		},
		{
			Content:  "Salary negotiation tips: Research market rates, highlight your value, be confident but realistic, consider total compensation, don't accept the first offer immediately.",
			Source:   "negotiation_guide",
			Metadata: map[string]string{"category": "career_advice", "domain": "general"},
		},
	}
}
