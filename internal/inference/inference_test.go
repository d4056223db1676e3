package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	ready bool
	text  string
	fail  bool
	delay time.Duration
	calls int
}

func (s *stubProvider) Infer(ctx context.Context, _ string, _ Options) Result {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return failure(ctx.Err())
		}
	}
	if s.fail {
		return Result{Source: SourceError, Text: "boom"}
	}
	return Result{Source: SourceModel, Text: s.text}
}

func (s *stubProvider) Ready() bool  { return s.ready }
func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Close() error { return nil }

const goodMarkup = `<section class="flex md:grid"><header><h1>Plans</h1></header><button aria-label="Buy">Buy</button></section>`

func TestHeuristicProvider(t *testing.T) {
	var p Provider = Heuristic{}
	res := p.Infer(context.Background(), "x", Options{})
	assert.Equal(t, SourceError, res.Source)
	assert.False(t, res.OK())
	assert.False(t, p.Ready())
}

func TestParseGrade(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"7", 7, true},
		{"Score: 8.5/10", 8.5, true},
		{"10", 10, true},
		{"11", 0, false},
		{"-1", 0, false},
		{"great job", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseGrade(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestHeuristicQuality(t *testing.T) {
	assert.Zero(t, HeuristicQuality("  "))
	assert.InDelta(t, 0.9, HeuristicQuality(goodMarkup), 1e-9)

	plain := `<div><div><span>just some plain text in here</span></div></div>`
	assert.InDelta(t, 0.5, HeuristicQuality(plain), 1e-9)

	assert.InDelta(t, 0.3, HeuristicQuality(`<div>hi</div>`), 1e-9)
}

func TestQualityScorer(t *testing.T) {
	ctx := context.Background()

	t.Run("model grade", func(t *testing.T) {
		q := NewQualityScorer(&stubProvider{ready: true, text: "8"}, 0, nil)
		s := q.Score(ctx, goodMarkup, "pricing")
		assert.Equal(t, SourceModel, s.Source)
		assert.InDelta(t, 0.8, s.Value, 1e-9)
	})

	t.Run("unparseable falls back", func(t *testing.T) {
		q := NewQualityScorer(&stubProvider{ready: true, text: "looks fine"}, 0, nil)
		s := q.Score(ctx, goodMarkup, "pricing")
		assert.Equal(t, SourceHeuristic, s.Source)
		assert.InDelta(t, HeuristicQuality(goodMarkup), s.Value, 1e-9)
	})

	t.Run("model error falls back", func(t *testing.T) {
		q := NewQualityScorer(&stubProvider{ready: true, fail: true}, 0, nil)
		assert.Equal(t, SourceHeuristic, q.Score(ctx, goodMarkup, "").Source)
	})

	t.Run("timeout falls back", func(t *testing.T) {
		p := &stubProvider{ready: true, text: "9", delay: time.Second}
		q := NewQualityScorer(p, 20*time.Millisecond, nil)
		start := time.Now()
		s := q.Score(ctx, goodMarkup, "")
		assert.Equal(t, SourceHeuristic, s.Source)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("not ready skips model", func(t *testing.T) {
		p := &stubProvider{ready: false, text: "9"}
		q := NewQualityScorer(p, 0, nil)
		assert.Equal(t, SourceHeuristic, q.Score(ctx, goodMarkup, "").Source)
		assert.Zero(t, p.calls)
	})
}

func TestPromptEnhancer(t *testing.T) {
	ctx := context.Background()
	hints := Hints{ComponentType: "pricing", Style: "minimal", Framework: "react"}

	model := NewPromptEnhancer(&stubProvider{ready: true, text: "  A minimal three-tier pricing table.  "}, 0, nil)
	got := model.Enhance(ctx, "pricing page", hints)
	assert.Equal(t, SourceModel, got.Source)
	assert.Equal(t, "A minimal three-tier pricing table.", got.Prompt)
	assert.Equal(t, "pricing page", got.Original)

	fallback := NewPromptEnhancer(nil, 0, nil)
	got = fallback.Enhance(ctx, "pricing page", hints)
	assert.Equal(t, SourceHeuristic, got.Source)
	assert.NotContains(t, got.Prompt, "Component type")
	assert.Contains(t, got.Prompt, "Visual style: minimal.")
	assert.Contains(t, got.Prompt, "Target framework: react.")
	assert.Contains(t, got.Prompt, "accessible")
	assert.True(t, strings.HasPrefix(got.Prompt, "pricing page"))
}

func TestOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tiny", req.Model)
		assert.Equal(t, 8, req.MaxTokens)

		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":" 7 "}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL+"/v1/", "tiny", "secret")
	assert.True(t, o.Ready())
	res := o.Infer(context.Background(), "rate", Options{MaxTokens: 8})
	assert.Equal(t, Result{Source: SourceModel, Text: "7"}, res)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := NewOpenAI(srv.URL, "tiny", "").Infer(context.Background(), "rate", Options{})
	assert.Equal(t, SourceError, res.Source)
	assert.Contains(t, res.Text, "503")
}

func TestNew_Factory(t *testing.T) {
	assert.Equal(t, ProviderHeuristic, New(Config{}, nil).Name())
	assert.Equal(t, ProviderHeuristic, New(Config{Provider: "mystery"}, nil).Name())
	assert.Equal(t, ProviderHeuristic, New(Config{Provider: ProviderSidecar}, nil).Name())

	t.Setenv("GENLOOP_TEST_KEY", "")
	assert.Equal(t, ProviderHeuristic, New(Config{Provider: ProviderOpenAI, APIKeyEnv: "GENLOOP_TEST_KEY", BaseURL: "http://x", Model: "m"}, nil).Name())

	t.Setenv("GENLOOP_TEST_KEY", "k")
	assert.Equal(t, ProviderOpenAI, New(Config{Provider: ProviderOpenAI, APIKeyEnv: "GENLOOP_TEST_KEY", BaseURL: "http://x", Model: "m"}, nil).Name())
}

func TestConfigTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Config{}.Timeout())
	assert.Equal(t, 250*time.Millisecond, Config{TimeoutMS: 250}.Timeout())
}

// helperSidecar returns a sidecar that re-runs this test binary as the
// model process.
func helperSidecar(t *testing.T, mode string) *Sidecar {
	t.Helper()
	original := execCommand
	execCommand = func(string, ...string) *exec.Cmd {
		return exec.Command(os.Args[0], "-test.run=TestSidecarHelperProcess", "--")
	}
	t.Cleanup(func() { execCommand = original })

	s := NewSidecar(Config{Command: "model", Env: map[string]string{"GENLOOP_SIDECAR_HELPER": mode}}, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSidecarHelperProcess(t *testing.T) {
	mode := os.Getenv("GENLOOP_SIDECAR_HELPER")
	if mode == "" {
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req sidecarRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			os.Exit(2)
		}
		resp := sidecarResponse{ID: req.ID, Text: "echo: " + req.Prompt}
		switch mode {
		case "slow":
			time.Sleep(10 * time.Second)
		case "slow-once":
			// The first process to see no marker stalls; later ones grade.
			marker := os.Getenv("GENLOOP_SIDECAR_MARKER")
			if _, err := os.Stat(marker); err != nil {
				_ = os.WriteFile(marker, nil, 0600)
				time.Sleep(10 * time.Second)
			}
			resp.Text = "8"
		case "error":
			resp = sidecarResponse{ID: req.ID, Error: "model overloaded"}
		}
		out, _ := json.Marshal(resp)
		fmt.Println(string(out))
	}
	os.Exit(0)
}

func TestSidecar_RoundTrip(t *testing.T) {
	s := helperSidecar(t, "echo")
	require.NoError(t, s.Start())
	assert.True(t, s.Ready())

	for i := 0; i < 3; i++ {
		res := s.Infer(context.Background(), fmt.Sprintf("prompt %d", i), Options{MaxTokens: 4})
		assert.Equal(t, SourceModel, res.Source)
		assert.Equal(t, fmt.Sprintf("echo: prompt %d", i), res.Text)
	}
	assert.EqualValues(t, 3, s.reqID)

	require.NoError(t, s.Close())
	assert.False(t, s.Ready())
}

func TestSidecar_ModelError(t *testing.T) {
	s := helperSidecar(t, "error")
	res := s.Infer(context.Background(), "x", Options{})
	assert.Equal(t, SourceError, res.Source)
	assert.Equal(t, "model overloaded", res.Text)
	assert.True(t, s.Ready())
}

func TestSidecar_TimeoutKillsProcess(t *testing.T) {
	s := helperSidecar(t, "slow")
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res := s.Infer(ctx, "x", Options{})
	assert.Equal(t, SourceError, res.Source)
	assert.Nil(t, s.cmd)
	assert.True(t, s.Ready())
}

func TestSidecar_RespawnsAfterTimeout(t *testing.T) {
	s := helperSidecar(t, "slow-once")
	s.env["GENLOOP_SIDECAR_MARKER"] = filepath.Join(t.TempDir(), "stalled")
	require.NoError(t, s.Start())

	scorer := NewQualityScorer(s, 2*time.Second, nil)
	markup := `<section><h1>Hi</h1></section>`

	first := scorer.Score(context.Background(), markup, "hero")
	assert.Equal(t, SourceHeuristic, first.Source)
	assert.True(t, s.Ready())

	second := scorer.Score(context.Background(), markup, "hero")
	assert.Equal(t, SourceModel, second.Source)
	assert.InDelta(t, 0.8, second.Value, 1e-9)
}

func TestSidecar_CloseIsFinal(t *testing.T) {
	s := helperSidecar(t, "echo")
	require.NoError(t, s.Start())
	require.NoError(t, s.Close())

	assert.False(t, s.Ready())
	assert.Equal(t, SourceError, s.Infer(context.Background(), "x", Options{}).Source)
}

func TestSidecar_NoCommand(t *testing.T) {
	s := NewSidecar(Config{}, nil)
	assert.Error(t, s.Start())
	assert.Equal(t, SourceError, s.Infer(context.Background(), "x", Options{}).Source)
}
