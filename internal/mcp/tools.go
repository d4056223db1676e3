package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/khanglvm/genloop/internal/inference"
	"github.com/khanglvm/genloop/internal/learning"
	"github.com/khanglvm/genloop/internal/search"
	"github.com/khanglvm/genloop/internal/storage"
	"github.com/khanglvm/genloop/internal/training"
)

// toolHandler executes one tool call and returns its text content.
type toolHandler func(ctx context.Context, args json.RawMessage) (string, error)

var errNoCatalog = errors.New("no catalog configured")

func (s *Server) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"record_generation":    s.execRecordGeneration,
		"record_feedback":      s.execRecordFeedback,
		"run_promotion":        s.execRunPromotion,
		"semantic_search":      s.execSemanticSearch,
		"search_catalog":       s.execSearchCatalog,
		"feedback_stats":       s.execFeedbackStats,
		"export_training_data": s.execExportTrainingData,
		"enhance_prompt":       s.execEnhancePrompt,
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// toolDefinitions returns the tools/list payload.
func toolDefinitions() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name": "record_generation",
			"description": `Record a UI generation event.

WHEN TO USE: After every component generation, with the produced code.

The event is fingerprinted, quality scored and compared with the previous
generation of the same session to infer implicit feedback.

Returns: The stored generation id, its structural fingerprint and any
inferred feedback on the previous generation.`,
			"inputSchema": objectSchema(map[string]interface{}{
				"session_id":     stringProp("Conversation or editor session id"),
				"component_type": stringProp("Component type, e.g. hero, pricing, navbar"),
				"variant":        stringProp("Variant name"),
				"mood":           stringProp("Mood, e.g. playful, corporate"),
				"industry":       stringProp("Industry, e.g. saas, fintech"),
				"style":          stringProp("Style preset"),
				"framework":      stringProp("Target framework, e.g. react, vue, html"),
				"tool":           stringProp("Generating tool name"),
				"prompt":         stringProp("The user's request"),
				"code":           stringProp("Generated code"),
				"prompt_context": stringProp("The user's follow-up message, used to detect praise or redo requests"),
			}, "component_type", "code"),
		},
		{
			"name": "record_feedback",
			"description": `Record explicit user feedback on a generation.

WHEN TO USE: When the user says they like or dislike a result.`,
			"inputSchema": objectSchema(map[string]interface{}{
				"generation_id": stringProp("Id returned by record_generation"),
				"rating": map[string]interface{}{
					"type":        "string",
					"description": "User rating",
					"enum":        []string{"positive", "negative"},
				},
				"comment": stringProp("Optional comment"),
			}, "generation_id", "rating"),
		},
		{
			"name":        "run_promotion",
			"description": `Promote every eligible code pattern into the component catalog. Returns the number promoted.`,
			"inputSchema": objectSchema(map[string]interface{}{}),
		},
		{
			"name": "semantic_search",
			"description": `Rank stored embeddings by cosine similarity.

Pass either a natural language query or a raw vector.`,
			"inputSchema": objectSchema(map[string]interface{}{
				"query": stringProp("Natural language query"),
				"vector": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "number"},
					"description": "Query vector",
				},
				"source_type": map[string]interface{}{
					"type":        "string",
					"description": "Embedding partition (default: component)",
					"enum":        []string{search.SourceComponent, search.SourcePrompt, search.SourceDescription},
				},
				"top_k":     map[string]interface{}{"type": "integer", "description": "Maximum results (default 5)"},
				"threshold": map[string]interface{}{"type": "number", "description": "Minimum similarity"},
			}),
		},
		{
			"name": "search_catalog",
			"description": `Search the component catalog.

Keyword search by default; set hybrid to fuse in semantic similarity.`,
			"inputSchema": objectSchema(map[string]interface{}{
				"query":          stringProp("Search text"),
				"component_type": stringProp("Restrict to one component type"),
				"limit":          map[string]interface{}{"type": "integer", "description": "Maximum results (default 10)"},
				"hybrid":         map[string]interface{}{"type": "boolean", "description": "Fuse keyword and semantic scores"},
			}, "query"),
		},
		{
			"name":        "feedback_stats",
			"description": `Feedback counts, per component scores and training readiness per adapter.`,
			"inputSchema": objectSchema(map[string]interface{}{}),
		},
		{
			"name":        "export_training_data",
			"description": `Export adapter training datasets as JSONL. Exports every adapter when none is given.`,
			"inputSchema": objectSchema(map[string]interface{}{
				"adapter": map[string]interface{}{
					"type":        "string",
					"description": "Adapter name",
					"enum":        training.Adapters,
				},
				"output_dir": stringProp("Output directory"),
			}),
		},
		{
			"name":        "enhance_prompt",
			"description": `Rewrite a vague UI request into a specific one.`,
			"inputSchema": objectSchema(map[string]interface{}{
				"prompt":         stringProp("The user's request"),
				"component_type": stringProp("Component type"),
				"style":          stringProp("Style preset"),
				"framework":      stringProp("Target framework"),
				"mood":           stringProp("Mood"),
			}, "prompt"),
		},
	}
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func toJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}

func (s *Server) execRecordGeneration(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		storage.Generation
		Code          string `json:"code"`
		PromptContext string `json:"prompt_context"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.ComponentType) == "" {
		return "", fmt.Errorf("component_type is required")
	}

	result := s.loop.RecordGeneration(ctx, in.Generation, in.Code, in.PromptContext)
	return toJSON(result)
}

func (s *Server) execRecordFeedback(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		GenerationID string `json:"generation_id"`
		Rating       string `json:"rating"`
		Comment      string `json:"comment"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.GenerationID == "" {
		return "", fmt.Errorf("generation_id is required")
	}
	rating, err := learning.ParseRating(in.Rating)
	if err != nil {
		return "", err
	}

	fb, err := s.loop.RecordExplicitFeedback(in.GenerationID, rating, in.Comment)
	if err != nil {
		return "", fmt.Errorf("failed to record feedback: %w", err)
	}
	return toJSON(fb)
}

func (s *Server) execRunPromotion(ctx context.Context, _ json.RawMessage) (string, error) {
	n := s.loop.RunPromotionCycle(ctx)
	return toJSON(map[string]int{"promoted": n})
}

func (s *Server) execSemanticSearch(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query      string    `json:"query"`
		Vector     []float32 `json:"vector"`
		SourceType string    `json:"source_type"`
		TopK       int       `json:"top_k"`
		Threshold  float64   `json:"threshold"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.SourceType == "" {
		in.SourceType = search.SourceComponent
	}

	var (
		matches []search.Match
		err     error
	)
	switch {
	case len(in.Vector) > 0:
		matches, err = s.loop.SemanticSearch(in.Vector, in.SourceType, in.TopK, in.Threshold)
	case strings.TrimSpace(in.Query) != "":
		matches, err = s.loop.SearchText(ctx, in.Query, in.SourceType, in.TopK, in.Threshold)
	default:
		return "", fmt.Errorf("query or vector is required")
	}
	if err != nil {
		return "", fmt.Errorf("semantic search failed: %w", err)
	}
	if matches == nil {
		matches = []search.Match{}
	}
	return toJSON(matches)
}

func (s *Server) execSearchCatalog(ctx context.Context, args json.RawMessage) (string, error) {
	if s.catalog == nil {
		return "", errNoCatalog
	}
	var in struct {
		Query         string `json:"query"`
		ComponentType string `json:"component_type"`
		Limit         int    `json:"limit"`
		Hybrid        bool   `json:"hybrid"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}

	switch {
	case in.ComponentType != "":
		results, err := s.catalog.ByComponentType(in.ComponentType, in.Query, in.Limit)
		if err != nil {
			return "", fmt.Errorf("catalog search failed: %w", err)
		}
		return toJSON(results)
	case in.Hybrid:
		results, err := s.loop.Indexer().SearchHybrid(ctx, s.catalog, in.Query, in.Limit, search.DefaultFusionConfig)
		if err != nil {
			return "", fmt.Errorf("hybrid search failed: %w", err)
		}
		return toJSON(results)
	default:
		results, err := s.catalog.Search(in.Query, in.Limit)
		if err != nil {
			return "", fmt.Errorf("catalog search failed: %w", err)
		}
		return toJSON(results)
	}
}

func (s *Server) execFeedbackStats(_ context.Context, _ json.RawMessage) (string, error) {
	stats, err := s.loop.Feedback().Stats()
	if err != nil {
		return "", fmt.Errorf("failed to read stats: %w", err)
	}
	scores, err := s.loop.Feedback().ComponentScores()
	if err != nil {
		return "", fmt.Errorf("failed to read component scores: %w", err)
	}

	readiness := make([]training.Readiness, 0, len(training.Adapters))
	for _, adapter := range training.Adapters {
		r, err := s.loop.Exporter().HasEnoughData(adapter)
		if err != nil {
			return "", fmt.Errorf("failed to check %s readiness: %w", adapter, err)
		}
		readiness = append(readiness, r)
	}

	return toJSON(map[string]interface{}{
		"stats":            stats,
		"component_scores": scores,
		"readiness":        readiness,
	})
}

func (s *Server) execExportTrainingData(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Adapter   string `json:"adapter"`
		OutputDir string `json:"output_dir"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	dir := in.OutputDir
	if dir == "" {
		dir = s.trainingDir
	}
	if dir == "" {
		return "", fmt.Errorf("output_dir is required")
	}

	if in.Adapter == "" {
		results, err := s.loop.Exporter().ExportAll(ctx, dir)
		if err != nil {
			return "", fmt.Errorf("export failed: %w", err)
		}
		return toJSON(results)
	}

	result, err := s.loop.ExportForAdapter(ctx, in.Adapter, dir)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	return toJSON(result)
}

func (s *Server) execEnhancePrompt(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Prompt string `json:"prompt"`
		inference.Hints
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}
	return toJSON(s.enhancer.Enhance(ctx, in.Prompt, in.Hints))
}
