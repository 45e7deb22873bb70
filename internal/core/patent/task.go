package patent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
)

// Task は実行する補完タスクの種類
type Task string

const (
	TaskPolish   Task = "polish"
	TaskAnalyze  Task = "analyze"
	TaskScore    Task = "score"
	TaskKeywords Task = "keywords"
	TaskPitch    Task = "pitch"
	TaskClaim    Task = "claim"
)

const (
	// ClaimMinLength は特許クレーム分析に必要な最小文字数
	ClaimMinLength = 10
	// ClaimMaxLength は特許クレーム分析で受け付ける最大文字数
	ClaimMaxLength = 10000
	// DefaultLanguage は言語指定がない場合の分析言語
	DefaultLanguage = "en"
)

// AllTasks は定義済みのタスクを返す
func AllTasks() []Task {
	return []Task{TaskPolish, TaskAnalyze, TaskScore, TaskKeywords, TaskPitch, TaskClaim}
}

// ParseTask は文字列をタスクに変換する
func ParseTask(s string) (Task, error) {
	t := Task(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTasks() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task: %q", s)
}

// RecordsHistory はタスク結果を履歴に残すかどうかを返す
func (t Task) RecordsHistory() bool {
	return t == TaskPolish
}

// Input はタスクへの入力
// Text はタスクごとに claim / description / text として受け取る本文
type Input struct {
	Text     string
	Title    string
	Language string
	Detailed bool
}

// Output はタスクの結果
type Output struct {
	Text     string
	Model    string
	Attempts int
	// TechnicalTerms は claim タスクでのみ埋まる
	TechnicalTerms []string
}

// validate は上流を呼ぶ前に入力を検証し、正規化した入力を返す
func (t Task) validate(in Input) (Input, error) {
	switch t {
	case TaskPolish:
		if isBlank(in.Text) {
			return in, gateway.InvalidInput("missing required field: claim")
		}
	case TaskAnalyze:
		if isBlank(in.Title) {
			return in, gateway.InvalidInput("missing required field: title")
		}
		if isBlank(in.Description()) {
			return in, gateway.InvalidInput("missing required field: description")
		}
	case TaskScore, TaskKeywords, TaskPitch:
		if isBlank(in.Text) {
			return in, gateway.InvalidInput("missing required field: description")
		}
	case TaskClaim:
		n := utf8.RuneCountInString(in.Text)
		if n < ClaimMinLength {
			return in, gateway.InvalidInput("text must be at least %d characters long", ClaimMinLength)
		}
		if n > ClaimMaxLength {
			return in, gateway.InvalidInput("text must be at most %d characters long", ClaimMaxLength)
		}
		if isBlank(in.Language) {
			in.Language = DefaultLanguage
		}
	default:
		return in, gateway.InvalidInput("unknown task: %s", t)
	}

	return in, nil
}

// Description は analyze テンプレートから本文を参照するための別名
func (in Input) Description() string {
	return in.Text
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
