package insight

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt 系统消息
const SystemPrompt = "You are a cement manufacturing analytics expert. Always respond in valid JSON format."

const (
	promptEvidenceRows  = 5
	resultEvidenceRows  = 3
	fallbackSummaryRune = 500
)

var (
	fallbackCauses  = []string{"Data analysis completed"}
	fallbackActions = []string{"Review detailed metrics", "Consult with operations team", "Monitor trends"}
)

const promptTemplate = `You are a domain expert in cement manufacturing analytics for Star Cement.

User Question: %s

Numeric evidence from database:
%s

Top data points:
%s

Produce a concise business insight (max 150 words) that:
1. Directly answers the question
2. Links causes to observed metrics
3. Provides 3 prioritized recommended actions (each 8-12 words)

IMPORTANT:
- Do NOT make up numbers - only use the provided evidence
- Be prescriptive and actionable
- Use Indian Rupee format (₹)

Respond in JSON format:
{
  "summary": "...",
  "causes": ["cause1", "cause2", "cause3"],
  "recommendedActions": ["action1", "action2", "action3"]
}`

// Narrative 生成的分析叙述
type Narrative struct {
	Summary            string   `json:"summary"`
	Causes             []string `json:"causes"`
	RecommendedActions []string `json:"recommendedActions"`
}

// BuildPrompt 组装用户消息：问题、关键指标与前若干行证据
func BuildPrompt(question string, metrics Metrics, rows []map[string]any) string {
	return fmt.Sprintf(promptTemplate, question, indentJSON(metrics), indentJSON(head(rows, promptEvidenceRows)))
}

// ParseNarrative 解析模型回复；非 JSON 或没有摘要与原因（如 null、{}）时退化为截断摘要加固定建议
func ParseNarrative(raw string) Narrative {
	var n Narrative
	if err := json.Unmarshal([]byte(stripFence(raw)), &n); err != nil {
		return fallbackNarrative(raw)
	}
	if strings.TrimSpace(n.Summary) == "" && len(n.Causes) == 0 {
		return fallbackNarrative(raw)
	}
	if n.Causes == nil {
		n.Causes = []string{}
	}
	if n.RecommendedActions == nil {
		n.RecommendedActions = []string{}
	}
	return n
}

func fallbackNarrative(raw string) Narrative {
	summary := []rune(raw)
	if len(summary) > fallbackSummaryRune {
		summary = summary[:fallbackSummaryRune]
	}
	return Narrative{
		Summary:            string(summary),
		Causes:             append([]string(nil), fallbackCauses...),
		RecommendedActions: append([]string(nil), fallbackActions...),
	}
}

// stripFence 去掉 ```json ... ``` 或 ``` ... ``` 包裹
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if _, after, ok := strings.Cut(s, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(s, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return s
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func head(rows []map[string]any, n int) []map[string]any {
	if len(rows) > n {
		rows = rows[:n]
	}
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}
