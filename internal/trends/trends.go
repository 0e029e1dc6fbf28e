// Package trends builds the Synchronicity Dashboard: cultural signals that
// intersect with a brand's identity capsule. Web-grounded research comes from
// Perplexity; Gemini reshapes the findings into the dashboard structure.
package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"artiquity/internal/capsule"
	"artiquity/internal/logging"
	"artiquity/internal/modeljson"
	"artiquity/internal/services/gemini"
	"artiquity/internal/services/perplexity"
	"artiquity/internal/store"
)

// Researcher is the web-grounded research dependency. *perplexity.Client
// satisfies it; a nil Researcher degrades to Gemini-only dashboards.
type Researcher interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (perplexity.Answer, error)
}

// Trend is one dashboard entry.
type Trend struct {
	Title          string   `json:"title"`
	SignalStrength string   `json:"signal_strength"` // rising, steady, peaking
	WhyItMatters   string   `json:"why_it_matters"`
	ActivationIdea string   `json:"activation_idea"`
	Sources        []string `json:"sources,omitempty"`
}

// Dashboard is the generated trends payload.
type Dashboard struct {
	BrandName   string    `json:"brand_name"`
	Trends      []Trend   `json:"trends"`
	GeneratedAt time.Time `json:"generated_at"`
	Fallback    bool      `json:"fallback,omitempty"`
}

// Service generates and persists dashboards.
type Service struct {
	text     gemini.TextGenerator
	research Researcher
	store    *store.Store
	model    string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a trends service. research may be nil when Perplexity
// is not configured.
func NewService(text gemini.TextGenerator, research Researcher, st *store.Store, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		text:     text,
		research: research,
		store:    st,
		model:    model,
		logger:   logging.WithComponent(logger, "trends"),
		now:      time.Now,
	}
}

// Generate produces a dashboard for the project, persists it, and advances
// the project status when this is the first dashboard. The project must have
// a capsule; research and model failures degrade rather than erroring.
func (s *Service) Generate(ctx context.Context, project *store.Project, cap *capsule.Capsule) (*Dashboard, error) {
	if cap == nil {
		return nil, fmt.Errorf("trends: project %s has no capsule", project.ID)
	}

	dashboard := s.generateFromModels(ctx, cap)
	dashboard.BrandName = cap.BrandName
	dashboard.GeneratedAt = s.now().UTC().Truncate(time.Second)

	payload, err := json.Marshal(dashboard)
	if err != nil {
		return nil, fmt.Errorf("trends: encode payload: %w", err)
	}
	artifact := &store.Artifact{
		ProjectID:   project.ID,
		PayloadJSON: string(payload),
		Model:       s.model,
		Fallback:    dashboard.Fallback,
	}
	if err := s.store.SaveArtifact(ctx, store.ArtifactDashboard, artifact); err != nil {
		return nil, err
	}
	if project.Status == store.StatusCapsuleReady {
		if err := s.store.TransitionProject(ctx, project.ID, store.StatusCapsuleReady, store.StatusTrendsReady); err != nil {
			return nil, err
		}
		project.Status = store.StatusTrendsReady
	}

	s.logger.Info("dashboard generated",
		logging.String("project_id", project.ID),
		logging.Int("trends", len(dashboard.Trends)),
		logging.Bool("fallback", dashboard.Fallback))
	return dashboard, nil
}

// Latest returns the most recent dashboard persisted for a project.
func (s *Service) Latest(ctx context.Context, projectID string) (*Dashboard, error) {
	artifact, err := s.store.LatestArtifact(ctx, store.ArtifactDashboard, projectID)
	if err != nil {
		return nil, err
	}
	var dashboard Dashboard
	if err := json.Unmarshal([]byte(artifact.PayloadJSON), &dashboard); err != nil {
		return nil, fmt.Errorf("trends: decode stored payload: %w", err)
	}
	return &dashboard, nil
}

func (s *Service) generateFromModels(ctx context.Context, cap *capsule.Capsule) *Dashboard {
	research, citations := s.runResearch(ctx, cap)

	content, err := s.text.GenerateJSON(ctx, gemini.TextRequest{
		System: reshapeSystemPrompt,
		Prompt: buildReshapePrompt(cap, research),
		Schema: responseSchema(),
	})
	if err != nil {
		s.logger.Warn("dashboard model call failed, using fallback", logging.Error(err))
		return fallbackDashboard(cap)
	}

	var dashboard Dashboard
	if err := modeljson.Decode(content, &dashboard); err != nil {
		s.logger.Warn("dashboard payload unparseable, using fallback", logging.Error(err))
		return fallbackDashboard(cap)
	}
	if len(dashboard.Trends) == 0 {
		return fallbackDashboard(cap)
	}
	// Attach research citations to trends that carry none of their own.
	if len(citations) > 0 {
		for i := range dashboard.Trends {
			if len(dashboard.Trends[i].Sources) == 0 {
				dashboard.Trends[i].Sources = citations
			}
		}
	}
	return &dashboard
}

func (s *Service) runResearch(ctx context.Context, cap *capsule.Capsule) (string, []string) {
	if s.research == nil {
		return "", nil
	}
	answer, err := s.research.CompleteJSON(ctx, researchSystemPrompt, buildResearchPrompt(cap))
	if err != nil {
		s.logger.Warn("trend research unavailable, continuing without web grounding", logging.Error(err))
		return "", nil
	}
	return answer.Content, answer.Citations
}

// fallbackDashboard is the canned payload returned when every model path
// fails. It keeps the wizard moving with generic but usable signals.
func fallbackDashboard(cap *capsule.Capsule) *Dashboard {
	return &Dashboard{
		Trends: []Trend{
			{
				Title:          "Provenance storytelling",
				SignalStrength: "rising",
				WhyItMatters:   "Audiences increasingly buy the story of how a thing is made, which favors brands like " + cap.BrandName + " with a real process to show.",
				ActivationIdea: "Publish a short behind-the-scenes series documenting one piece from raw material to finished object.",
			},
			{
				Title:          "Slow content over volume",
				SignalStrength: "steady",
				WhyItMatters:   "Feeds reward fewer, richer posts; a considered cadence matches the brand's unhurried voice.",
				ActivationIdea: "Replace daily posting with one weekly long-form piece tied to a single brand value.",
			},
			{
				Title:          "Community as distribution",
				SignalStrength: "rising",
				WhyItMatters:   "Small-audience newsletters and group chats now outperform broad social reach for niche brands.",
				ActivationIdea: "Start a members-only dispatch offering early access to new work.",
			},
		},
		Fallback: true,
	}
}

const researchSystemPrompt = `You are a cultural researcher. Report current, concrete cultural and market signals with sources. Respond with JSON only: {"signals":[{"signal":"...","evidence":"..."}]}.`

func buildResearchPrompt(cap *capsule.Capsule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Find current cultural trends and market signals relevant to this brand:\n")
	fmt.Fprintf(&b, "Brand: %s\nEssence: %s\n", cap.BrandName, cap.Essence)
	if len(cap.Values) > 0 {
		fmt.Fprintf(&b, "Values: %s\n", strings.Join(cap.Values, ", "))
	}
	if cap.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", cap.Audience)
	}
	b.WriteString("Focus on signals from the last six months.")
	return b.String()
}

const reshapeSystemPrompt = `You are a brand strategist turning research into an actionable trend dashboard. Respond with JSON only.`

func buildReshapePrompt(cap *capsule.Capsule, research string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\nEssence: %s\n", cap.BrandName, cap.Essence)
	if len(cap.VoiceTraits) > 0 {
		fmt.Fprintf(&b, "Voice: %s\n", strings.Join(cap.VoiceTraits, ", "))
	}
	if research != "" {
		fmt.Fprintf(&b, "\nWeb research findings:\n%s\n", research)
	} else {
		b.WriteString("\nNo web research is available; rely on general knowledge.\n")
	}
	b.WriteString("\nProduce 3 to 5 trends this brand should act on, each with signal strength (rising, steady, or peaking), why it matters for this specific brand, and one concrete activation idea.")
	return b.String()
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"trends": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":           {Type: genai.TypeString},
						"signal_strength": {Type: genai.TypeString, Enum: []string{"rising", "steady", "peaking"}},
						"why_it_matters":  {Type: genai.TypeString},
						"activation_idea": {Type: genai.TypeString},
						"sources": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{"title", "signal_strength", "why_it_matters", "activation_idea"},
				},
			},
		},
		Required: []string{"trends"},
	}
}
