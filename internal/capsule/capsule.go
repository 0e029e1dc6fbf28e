// Package capsule generates the Identity Capsule: a structured description
// of a brand's voice and visual vocabulary that anchors every later wizard
// stage's prompts.
package capsule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"artiquity/internal/logging"
	"artiquity/internal/modeljson"
	"artiquity/internal/services/gemini"
	"artiquity/internal/store"
)

// Inputs are the brand facts collected by the wizard's first step.
type Inputs struct {
	BrandName        string   `json:"brand_name"`
	Essence          string   `json:"essence"`
	Values           []string `json:"values,omitempty"`
	Audience         string   `json:"audience,omitempty"`
	VisualReferences []string `json:"visual_references,omitempty"`
}

// Capsule is the generated identity payload.
type Capsule struct {
	BrandName        string   `json:"brand_name"`
	Essence          string   `json:"essence"`
	Tagline          string   `json:"tagline"`
	Values           []string `json:"values"`
	Audience         string   `json:"audience"`
	VoiceTraits      []string `json:"voice_traits"`
	VisualVocabulary []string `json:"visual_vocabulary"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// Service generates and persists capsules.
type Service struct {
	text   gemini.TextGenerator
	store  *store.Store
	model  string
	logger *slog.Logger
}

// NewService constructs a capsule service. The model name is recorded with
// each persisted artifact.
func NewService(text gemini.TextGenerator, st *store.Store, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		text:   text,
		store:  st,
		model:  model,
		logger: logging.WithComponent(logger, "capsule"),
	}
}

// ParseInputs decodes the wizard inputs stored on a project.
func ParseInputs(inputsJSON string) (Inputs, error) {
	var inputs Inputs
	if strings.TrimSpace(inputsJSON) == "" {
		return inputs, nil
	}
	if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
		return inputs, fmt.Errorf("parse capsule inputs: %w", err)
	}
	return inputs, nil
}

// Generate produces a capsule for the project, persists it, and advances the
// project status when this is the first capsule. Model failure degrades to
// the canned fallback capsule rather than failing the wizard step.
func (s *Service) Generate(ctx context.Context, project *store.Project) (*Capsule, error) {
	inputs, err := ParseInputs(project.InputsJSON)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(inputs.BrandName) == "" {
		inputs.BrandName = project.BrandName
	}
	if strings.TrimSpace(inputs.BrandName) == "" {
		return nil, fmt.Errorf("capsule: project %s has no brand name", project.ID)
	}

	capsule := s.generateFromModel(ctx, inputs)

	payload, err := json.Marshal(capsule)
	if err != nil {
		return nil, fmt.Errorf("capsule: encode payload: %w", err)
	}
	artifact := &store.Artifact{
		ProjectID:   project.ID,
		PayloadJSON: string(payload),
		Model:       s.model,
		Fallback:    capsule.Fallback,
	}
	if err := s.store.SaveArtifact(ctx, store.ArtifactCapsule, artifact); err != nil {
		return nil, err
	}
	if project.Status == store.StatusDraft {
		if err := s.store.TransitionProject(ctx, project.ID, store.StatusDraft, store.StatusCapsuleReady); err != nil {
			return nil, err
		}
		project.Status = store.StatusCapsuleReady
	}

	s.logger.Info("capsule generated",
		logging.String("project_id", project.ID),
		logging.String("brand", inputs.BrandName),
		logging.Bool("fallback", capsule.Fallback))
	return capsule, nil
}

// Latest returns the most recent capsule persisted for a project.
func (s *Service) Latest(ctx context.Context, projectID string) (*Capsule, error) {
	artifact, err := s.store.LatestArtifact(ctx, store.ArtifactCapsule, projectID)
	if err != nil {
		return nil, err
	}
	var capsule Capsule
	if err := json.Unmarshal([]byte(artifact.PayloadJSON), &capsule); err != nil {
		return nil, fmt.Errorf("capsule: decode stored payload: %w", err)
	}
	return &capsule, nil
}

func (s *Service) generateFromModel(ctx context.Context, inputs Inputs) *Capsule {
	content, err := s.text.GenerateJSON(ctx, gemini.TextRequest{
		System: systemPrompt,
		Prompt: buildPrompt(inputs),
		Schema: responseSchema(),
	})
	if err != nil {
		s.logger.Warn("capsule model call failed, using fallback", logging.Error(err))
		return fallbackCapsule(inputs)
	}

	var capsule Capsule
	if err := modeljson.Decode(content, &capsule); err != nil {
		s.logger.Warn("capsule payload unparseable, using fallback", logging.Error(err))
		return fallbackCapsule(inputs)
	}
	if strings.TrimSpace(capsule.BrandName) == "" {
		capsule.BrandName = inputs.BrandName
	}
	if strings.TrimSpace(capsule.Essence) == "" {
		capsule.Essence = inputs.Essence
	}
	return &capsule
}

// fallbackCapsule echoes the wizard inputs with neutral defaults so the
// wizard can continue when the model is unavailable.
func fallbackCapsule(inputs Inputs) *Capsule {
	values := inputs.Values
	if len(values) == 0 {
		values = []string{"authenticity", "craft", "consistency"}
	}
	visual := inputs.VisualReferences
	if len(visual) == 0 {
		visual = []string{"natural light", "muted palette", "honest textures"}
	}
	audience := inputs.Audience
	if audience == "" {
		audience = "people drawn to independent makers"
	}
	return &Capsule{
		BrandName:        inputs.BrandName,
		Essence:          inputs.Essence,
		Tagline:          inputs.BrandName + ", made with intent",
		Values:           values,
		Audience:         audience,
		VoiceTraits:      []string{"direct", "warm", "unhurried"},
		VisualVocabulary: visual,
		Fallback:         true,
	}
}

const systemPrompt = `You are a brand strategist. Distill the brand facts you are given into an identity capsule. Respond with JSON only.`

func buildPrompt(inputs Inputs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand name: %s\n", inputs.BrandName)
	if inputs.Essence != "" {
		fmt.Fprintf(&b, "Essence: %s\n", inputs.Essence)
	}
	if len(inputs.Values) > 0 {
		fmt.Fprintf(&b, "Stated values: %s\n", strings.Join(inputs.Values, ", "))
	}
	if inputs.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", inputs.Audience)
	}
	if len(inputs.VisualReferences) > 0 {
		fmt.Fprintf(&b, "Visual references: %s\n", strings.Join(inputs.VisualReferences, ", "))
	}
	b.WriteString("\nProduce the identity capsule for this brand.")
	return b.String()
}

func responseSchema() *genai.Schema {
	stringList := &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"brand_name":        {Type: genai.TypeString},
			"essence":           {Type: genai.TypeString, Description: "One sentence capturing what the brand is"},
			"tagline":           {Type: genai.TypeString},
			"values":            stringList,
			"audience":          {Type: genai.TypeString},
			"voice_traits":      stringList,
			"visual_vocabulary": stringList,
		},
		Required: []string{"brand_name", "essence", "tagline", "values", "audience", "voice_traits", "visual_vocabulary"},
	}
}
