package patent

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
)

const analystSystemPrompt = "You are a helpful patent analyst."

// Prompt はタスクごとのプロンプト定義
// User は Input を受け取る text/template
type Prompt struct {
	System      string
	User        string
	Temperature *float64
}

// PromptOverride は TOML ファイルで上書きできるプロンプト設定
// 空文字列と未指定のフィールドはデフォルトのまま残す
type PromptOverride struct {
	System      string   `toml:"system"`
	User        string   `toml:"user"`
	Temperature *float64 `toml:"temperature"`
}

// DefaultPrompts は組み込みのプロンプトを返す
// Temperature が nil のタスクは Gateway のデフォルト温度を使う
func DefaultPrompts() map[Task]Prompt {
	return map[Task]Prompt{
		TaskPolish: {
			System: "You are an expert patent attorney. Rewrite the user's patent claim so that it is " +
				"clear, precise and legally robust. Keep the original invention and scope. " +
				"Return only the rewritten claim.",
			User: "{{.Text}}",
		},
		TaskAnalyze: {
			System: analystSystemPrompt,
			User: "Analyze this invention idea for novelty and feasibility, then give a short " +
				"technical and market analysis:\n\nTitle: {{.Title}}\n\n{{.Description}}",
			Temperature: gateway.Float(0.5),
		},
		TaskScore: {
			System:      analystSystemPrompt,
			User:        "Score the novelty of this invention from 1 to 10, and explain why:\n\n{{.Text}}",
			Temperature: gateway.Float(0.5),
		},
		TaskKeywords: {
			System:      analystSystemPrompt,
			User:        "Extract the top 10 technical keywords from this invention idea:\n\n{{.Text}}",
			Temperature: gateway.Float(0.5),
		},
		TaskPitch: {
			System:      analystSystemPrompt,
			User:        "Generate a 2-paragraph investor pitch for this invention:\n\n{{.Text}}",
			Temperature: gateway.Float(0.5),
		},
		TaskClaim: {
			System: analystSystemPrompt,
			User: "Analyze this patent claim and provide:\n" +
				"1. Novelty assessment\n" +
				"2. Key technical features\n" +
				"3. Potential prior art references\n" +
				"{{if .Detailed}}4. Include expanded explanation of reasoning.\n{{end}}" +
				"\nLanguage: {{.Language}}\n\nPatent Text:\n{{.Text}}",
		},
	}
}

// LoadPromptOverrides は TOML ファイルからプロンプトの上書き設定を読み込む
//
//	[polish]
//	system = "..."
//	temperature = 0.3
func LoadPromptOverrides(path string) (map[Task]PromptOverride, error) {
	var raw map[string]PromptOverride
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode prompts file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in prompts file %s: %s", path, strings.Join(keys, ", "))
	}

	overrides := make(map[Task]PromptOverride, len(raw))
	for name, o := range raw {
		task, err := ParseTask(name)
		if err != nil {
			return nil, fmt.Errorf("prompts file %s: %w", path, err)
		}
		if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 1) {
			return nil, fmt.Errorf("prompts file %s: temperature for %s must be within 0.0-1.0", path, task)
		}
		overrides[task] = o
	}

	return overrides, nil
}

// compiledPrompt はテンプレートを解析済みのプロンプト
type compiledPrompt struct {
	system      string
	user        *template.Template
	temperature *float64
}

func compilePrompts(base map[Task]Prompt, overrides map[Task]PromptOverride) (map[Task]compiledPrompt, error) {
	compiled := make(map[Task]compiledPrompt, len(base))
	for task, p := range base {
		if o, ok := overrides[task]; ok {
			if o.System != "" {
				p.System = o.System
			}
			if o.User != "" {
				p.User = o.User
			}
			if o.Temperature != nil {
				p.Temperature = gateway.Float(*o.Temperature)
			}
		}

		tmpl, err := template.New(string(task)).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("failed to parse user prompt for %s: %w", task, err)
		}

		compiled[task] = compiledPrompt{
			system:      p.System,
			user:        tmpl,
			temperature: p.Temperature,
		}
	}

	return compiled, nil
}

func (p compiledPrompt) render(in Input) (string, error) {
	var sb strings.Builder
	if err := p.user.Execute(&sb, in); err != nil {
		return "", err
	}
	return sb.String(), nil
}
