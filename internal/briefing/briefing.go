// Package briefing generates AI text summaries of the team's workload.
package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	filtrackmodel "github.com/fillteam/filltrack/internal/model"
)

// Generator produces workload summaries via a chat model. Failures are
// plain errors for the caller to render inline; they never carry task
// state with them.
type Generator struct {
	chatModel model.ToolCallingChatModel
}

// NewGenerator creates a Generator over an already-constructed chat model.
func NewGenerator(chatModel model.ToolCallingChatModel) *Generator {
	return &Generator{chatModel: chatModel}
}

// workloadSummary is the anonymized data handed to the model.
type workloadSummary struct {
	PendingCount    int              `json:"pendingCount"`
	ActiveCount     int              `json:"activeCount"`
	UrgentCount     int              `json:"urgentCount"`
	MemberWorkloads []memberWorkload `json:"memberWorkloads"`
}

type memberWorkload struct {
	Name        string `json:"name"`
	ActiveTasks int    `json:"activeTasks"`
}

func summarize(tasks []filtrackmodel.Task, members []filtrackmodel.TeamMember) workloadSummary {
	s := workloadSummary{}
	for _, t := range tasks {
		if t.AssigneeID == "" {
			s.PendingCount++
		} else if t.Status != filtrackmodel.StatusCompleted {
			s.ActiveCount++
		}
		if t.Priority == filtrackmodel.PriorityUrgent {
			s.UrgentCount++
		}
	}
	for _, m := range members {
		if m.Role != filtrackmodel.RoleMember {
			continue
		}
		load := memberWorkload{Name: m.Name}
		for _, t := range tasks {
			if t.AssigneeID == m.ID && t.Status == filtrackmodel.StatusInProgress {
				load.ActiveTasks++
			}
		}
		s.MemberWorkloads = append(s.MemberWorkloads, load)
	}
	return s
}

// MorningBriefing generates a concise workload briefing for the manager.
func (g *Generator) MorningBriefing(ctx context.Context, tasks []filtrackmodel.Task, members []filtrackmodel.TeamMember) (string, error) {
	data, err := json.MarshalIndent(summarize(tasks, members), "", "  ")
	if err != nil {
		return "", fmt.Errorf("summarize workload: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are an AI assistant for a pharmaceutical filling team manager.\n")
	sb.WriteString("Analyze the following workload data:\n")
	sb.Write(data)
	sb.WriteString("\n\nProvide a concise \"Morning Briefing\" (max 150 words).\n")
	sb.WriteString("1. Highlight any bottlenecks or urgent unassigned tasks.\n")
	sb.WriteString("2. Suggest if workload needs balancing.\n")
	sb.WriteString("3. Keep tone professional and encouraging.\n")
	sb.WriteString("4. Do not use markdown bolding too heavily.\n")

	return g.generate(ctx, sb.String())
}

// SuggestAssignment recommends a team member for a task based on current
// workload.
func (g *Generator) SuggestAssignment(ctx context.Context, task *filtrackmodel.Task, tasks []filtrackmodel.Task, members []filtrackmodel.TeamMember) (string, error) {
	type load struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		CurrentTasks int    `json:"currentTasks"`
	}
	var loads []load
	for _, m := range members {
		if m.Role != filtrackmodel.RoleMember {
			continue
		}
		l := load{ID: m.ID, Name: m.Name}
		for _, t := range tasks {
			if t.AssigneeID == m.ID && t.Status != filtrackmodel.StatusCompleted {
				l.CurrentTasks++
			}
		}
		loads = append(loads, l)
	}

	data, err := json.MarshalIndent(loads, "", "  ")
	if err != nil {
		return "", fmt.Errorf("summarize member load: %w", err)
	}

	prompt := fmt.Sprintf(
		"I have a new filling task: Project %s, Priority: %s.\n"+
			"Current Team Workload:\n%s\n\n"+
			"Recommend one team member to assign this to based on lowest workload.\n"+
			"Explain why in 1 sentence.",
		task.ProjectNumber, task.Priority, data)

	return g.generate(ctx, prompt)
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{
		{Role: schema.User, Content: prompt},
	}

	result, err := g.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate briefing: %w", err)
	}
	return result.Content, nil
}
