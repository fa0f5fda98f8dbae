package chat

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-insights/internal/model"
)

const (
	nlToSQLPreamble = "You are an AI assistant. Convert natural language questions into SQL queries."
	sqlToNLPreamble = "You are an AI assistant. Convert the database response into a natural, human-readable summary."
	promptClosing   = "Now, generate the response:"
)

// describeTables renders the schema block. Tables whose columns carry
// descriptions are rendered as a nested list.
func describeTables(tables []model.TableSchema) string {
	var b strings.Builder
	b.WriteString("**TABLE INFORMATION:**\n")
	for _, table := range tables {
		fmt.Fprintf(&b, "Table: `%s`\n", table.Name)
		if !hasDescriptions(table.Columns) {
			names := make([]string, len(table.Columns))
			for i, c := range table.Columns {
				names[i] = "`" + c.Name + "`"
			}
			fmt.Fprintf(&b, "- Columns: %s\n", strings.Join(names, ", "))
			continue
		}
		b.WriteString("- Columns:\n")
		for _, c := range table.Columns {
			if c.Description == "" {
				fmt.Fprintf(&b, "  - `%s`\n", c.Name)
				continue
			}
			fmt.Fprintf(&b, "  - `%s`: %s\n", c.Name, c.Description)
		}
	}
	return b.String()
}

func hasDescriptions(columns []model.Column) bool {
	for _, c := range columns {
		if c.Description != "" {
			return true
		}
	}
	return false
}

func writeRules(b *strings.Builder, rules []string) {
	for _, r := range rules {
		fmt.Fprintf(b, "- %s\n", r)
	}
}

// userFilter is appended to the question when the tenant needs per-user rows.
func userFilter(project *model.ProjectConfig, userID string) string {
	if !project.UserFilterRequired || userID == "" {
		return ""
	}
	return "for user_id=" + userID
}

// BuildSQLPrompt composes the NL→SQL prompt.
func BuildSQLPrompt(question string, project *model.ProjectConfig, userID string, examples []model.SQLExample) string {
	var b strings.Builder
	b.WriteString(nlToSQLPreamble)
	b.WriteString("\n\n")
	b.WriteString(describeTables(project.Tables))

	q := strings.TrimSpace(question)
	if filter := userFilter(project, userID); filter != "" {
		q = strings.TrimRight(q, "?") + " " + filter + "?"
	}
	fmt.Fprintf(&b, "\n**Question:** %q\n", q)

	if dialect := project.Dialect; dialect != "" {
		fmt.Fprintf(&b, "\n**Dialect:** %s\n", dialect)
	}

	if len(project.Rules) > 0 {
		b.WriteString("\n**Rules (STRICTLY FOLLOW):**\n")
		writeRules(&b, project.Rules)
	}

	if len(examples) > 0 {
		b.WriteString("\n**Similar Examples:**\n")
		for i, ex := range examples {
			fmt.Fprintf(&b, "Example %d:\nQuestion: %q\nSQL: ```%s```\n\n", i+1, ex.Prompt, ex.SQL)
		}
	}

	b.WriteString("\n**Response Format:**\n")
	b.WriteString("- Valid query → {\"query\": \"SQL_QUERY\"}\n")
	b.WriteString("- Invalid question → {\"error_message\": \"Error message\"}\n\n")
	b.WriteString(promptClosing)
	return b.String()
}

// BuildAnswerPrompt composes the SQL→NL prompt. payload is the result set
// rendered verbatim.
func BuildAnswerPrompt(question string, project *model.ProjectConfig, payload string) string {
	var b strings.Builder
	b.WriteString(sqlToNLPreamble)
	b.WriteString("\n\n")
	b.WriteString(describeTables(project.Tables))

	if len(project.SQLToNLRules) > 0 {
		b.WriteString("\n**Rules (STRICTLY FOLLOW):**\n")
		writeRules(&b, project.SQLToNLRules)
	}

	b.WriteString("\n### Input:\n")
	fmt.Fprintf(&b, "- **User Question:** %s\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "- **Database Response:** %s\n\n", payload)
	b.WriteString(promptClosing)
	return b.String()
}
