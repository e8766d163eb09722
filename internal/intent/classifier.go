// Package intent classifies student queries into a domain, an intent label,
// and a mentoring persona. Keyword matching runs first; a structured provider
// call refines low-confidence results when escalation is enabled.
package intent

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/anandkrs/careercompanion/internal/observability"
	"github.com/anandkrs/careercompanion/internal/prompts"
)

// Domain labels. General is the fallback for queries no keyword table claims.
const (
	DomainSoftwareDev = "software_development"
	DomainAIML        = "ai_ml"
	DomainVLSI        = "vlsi"
	DomainEmbedded    = "embedded"
	DomainMechanical  = "mechanical"
	DomainSoftSkills  = "soft_skills"
	DomainGeneral     = "general"
)

// Persona labels.
const (
	PersonaStrictRecruiter  = "strict_recruiter"
	PersonaSupportiveMentor = "supportive_mentor"
)

// Classification is the outcome of routing one query.
type Classification struct {
	Domain     string            `json:"domain"`
	Confidence float64           `json:"confidence"`
	Intent     string            `json:"intent"`
	Persona    string            `json:"persona"`
	Entities   map[string]string `json:"entities,omitempty"`
}

// StructuredGenerator produces a JSON object from a prompt. The llm gateway
// satisfies this; tests substitute fakes.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt, systemPrompt string) (map[string]any, error)
}

// maxConfidence caps keyword confidence so low-scoring matches can still be
// escalated to the provider.
const maxConfidence = 0.95

// escalationThreshold: keyword results at or below this confidence are
// re-classified by the provider when escalation is requested.
const defaultEscalationThreshold = 0.7

type domainKeywords struct {
	domain   string
	keywords []string
}

// Ordered so ties resolve to the earlier domain deterministically.
var domainTable = []domainKeywords{
	{DomainSoftwareDev, []string{
		"code", "coding", "programming", "web", "app", "software", "developer",
		"javascript", "python", "java", "react", "node", "backend", "frontend",
		"fullstack", "database", "sql", "api", "git", "algorithm", "dsa",
		"leetcode", "system design", "cloud", "aws", "docker", "devops",
	}},
	{DomainAIML, []string{
		"machine learning", "ml", "ai", "artificial intelligence", "neural network",
		"deep learning", "data science", "tensorflow", "pytorch", "model",
		"nlp", "computer vision", "cnn", "rnn", "transformer", "generative",
		"dataset", "training", "inference", "feature engineering", "mlops",
	}},
	{DomainVLSI, []string{
		"vlsi", "chip", "ic design", "rtl", "verilog", "vhdl", "asic", "fpga",
		"analog", "digital", "layout", "synthesis", "verification", "timing",
		"semiconductor", "cadence", "synopsys", "eda", "physical design",
	}},
	{DomainEmbedded, []string{
		"embedded", "microcontroller", "mcu", "firmware", "iot", "arduino",
		"raspberry pi", "arm", "rtos", "uart", "spi", "i2c", "can", "sensor",
		"actuator", "driver", "hardware", "low level", "bare metal",
	}},
	{DomainMechanical, []string{
		"mechanical", "cad", "cam", "solidworks", "autocad", "catia", "ansys",
		"manufacturing", "design", "thermodynamics", "fluid", "heat transfer",
		"fea", "cfd", "automation", "robotics", "product design", "quality",
	}},
	{DomainSoftSkills, []string{
		"communication", "leadership", "teamwork", "soft skill", "presentation",
		"interview skill", "confidence", "body language", "email", "networking",
		"emotional intelligence", "conflict", "time management", "organization",
		"problem solving", "critical thinking", "behavioral interview",
	}},
}

var strictRecruiterKeywords = []string{
	"interview", "mock interview", "technical question", "coding question",
	"resume review", "cv review", "evaluate my", "critique my",
	"test me", "quiz me", "ask me", "practice", "prepare for interview",
	"system design", "algorithm", "data structure", "solve this",
	"explain how", "implement", "code", "debug", "optimize",
	"what is the time complexity", "what is polymorphism", "what is",
	"how does", "difference between", "compare", "technical",
}

var supportiveMentorKeywords = []string{
	"confused", "don't know", "not sure", "overwhelmed", "scared",
	"anxious", "worried", "what should i do", "help me decide",
	"career path", "which domain", "should i choose", "guidance",
	"lost", "stuck", "can't decide", "advice", "suggest",
	"roadmap", "plan", "how to start", "where to begin",
	"feeling", "stress", "pressure", "difficult", "hard",
}

var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`what is`),
	regexp.MustCompile(`explain`),
	regexp.MustCompile(`how does`),
	regexp.MustCompile(`difference between`),
	regexp.MustCompile(`implement`),
	regexp.MustCompile(`solve`),
	regexp.MustCompile(`write code`),
	regexp.MustCompile(`time complexity`),
}

type intentPattern struct {
	name    string
	pattern *regexp.Regexp
}

// Ordered: the first matching pattern wins.
var intentPatterns = []intentPattern{
	{"resume_review", regexp.MustCompile(`(resume|cv|curriculum vitae)`)},
	{"interview_prep", regexp.MustCompile(`(interview|mock interview|practice)`)},
	{"skill_assessment", regexp.MustCompile(`(skill|learn|improve|gap)`)},
	{"company_research", regexp.MustCompile(`(company|organization|firm)`)},
	{"project_suggestion", regexp.MustCompile(`(project|build|create|develop)`)},
	{"career_advice", regexp.MustCompile(`(career|path|guidance|advice)`)},
	{"job_search", regexp.MustCompile(`(job|position|opening|opportunity)`)},
}

// validDomains guards provider output: anything else maps to general.
var validDomains = map[string]bool{
	DomainSoftwareDev: true,
	DomainAIML:        true,
	DomainVLSI:        true,
	DomainEmbedded:    true,
	DomainMechanical:  true,
	DomainSoftSkills:  true,
	DomainGeneral:     true,
}

// Classifier routes queries. The zero threshold means "use the default".
type Classifier struct {
	generator StructuredGenerator
	threshold float64
	logger    *log.Logger
	metrics   *observability.Metrics
}

// NewClassifier builds a classifier. generator may be nil, in which case
// escalation is disabled and keyword results are always final.
func NewClassifier(generator StructuredGenerator, threshold float64, logger *log.Logger) *Classifier {
	if threshold <= 0 {
		threshold = defaultEscalationThreshold
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{generator: generator, threshold: threshold, logger: logger}
}

// SetMetrics enables escalation accounting.
func (c *Classifier) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Classify routes one query. When escalate is true and the keyword confidence
// does not clear the threshold, the provider refines domain, confidence, and
// intent; the keyword-detected persona always stands. Any escalation failure
// falls back silently to the keyword result.
func (c *Classifier) Classify(ctx context.Context, query string, escalate bool) Classification {
	result := c.classifyByKeywords(query)
	result.Persona = detectPersona(query)

	if result.Confidence > c.threshold || !escalate || c.generator == nil {
		return result
	}

	refined, err := c.classifyByProvider(ctx, query)
	if err != nil {
		c.logger.Printf("intent: provider classification failed, keeping keyword result: %v", err)
		c.countEscalation("fallback")
		return result
	}
	c.countEscalation("refined")
	refined.Persona = result.Persona
	return refined
}

func (c *Classifier) countEscalation(result string) {
	if c.metrics != nil {
		c.metrics.EscalationResults.WithLabelValues(result).Inc()
	}
}

func (c *Classifier) classifyByKeywords(query string) Classification {
	lower := strings.ToLower(query)

	bestDomain := ""
	bestScore := 0
	var bestMatched []string
	for _, entry := range domainTable {
		score := 0
		var matched []string
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				score++
				matched = append(matched, kw)
			}
		}
		if score > bestScore {
			bestDomain = entry.domain
			bestScore = score
			bestMatched = matched
		}
	}

	if bestScore == 0 {
		return Classification{
			Domain:     DomainGeneral,
			Confidence: 0.5,
			Intent:     "general_query",
			Entities:   map[string]string{},
		}
	}

	confidence := float64(bestScore) / 3
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return Classification{
		Domain:     bestDomain,
		Confidence: confidence,
		Intent:     extractIntent(lower),
		Entities:   map[string]string{"matched_keywords": strings.Join(bestMatched, ",")},
	}
}

func (c *Classifier) classifyByProvider(ctx context.Context, query string) (Classification, error) {
	response, err := c.generator.GenerateStructured(ctx,
		prompts.ClassificationRequest(query),
		"You are an expert at classifying student queries for placement preparation.")
	if err != nil {
		return Classification{}, err
	}

	domain, _ := response["domain"].(string)
	if !validDomains[domain] {
		domain = DomainGeneral
	}

	confidence := 0.8
	if v, ok := response["confidence"].(float64); ok {
		confidence = v
	}

	intentLabel, _ := response["intent"].(string)
	if intentLabel == "" {
		intentLabel = "general_query"
	}

	entities := map[string]string{}
	if raw, ok := response["entities"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				entities[k] = s
			}
		}
	}

	return Classification{
		Domain:     domain,
		Confidence: confidence,
		Intent:     intentLabel,
		Entities:   entities,
	}, nil
}

func detectPersona(query string) string {
	lower := strings.ToLower(query)

	strictScore := 0
	for _, kw := range strictRecruiterKeywords {
		if strings.Contains(lower, kw) {
			strictScore++
		}
	}
	supportiveScore := 0
	for _, kw := range supportiveMentorKeywords {
		if strings.Contains(lower, kw) {
			supportiveScore++
		}
	}

	technical := false
	for _, p := range technicalPatterns {
		if p.MatchString(lower) {
			technical = true
			break
		}
	}

	if strictScore > supportiveScore || technical {
		return PersonaStrictRecruiter
	}
	return PersonaSupportiveMentor
}

func extractIntent(lower string) string {
	for _, ip := range intentPatterns {
		if ip.pattern.MatchString(lower) {
			return ip.name
		}
	}
	return "general_query"
}
