// Package export renders the task list as a spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fillteam/filltrack/internal/model"
)

var header = []string{
	"Task ID",
	"Project Number",
	"Batch Info",
	"Project Owner",
	"Source",
	"Priority",
	"Status",
	"Assignee",
	"Start Date",
	"Deadline",
	"Completion Date",
	"Progress",
}

// WriteCSV writes all tasks to w, one row per task. The output starts
// with a UTF-8 BOM so spreadsheet applications pick the right encoding.
func WriteCSV(w io.Writer, tasks []model.Task, members []model.TeamMember) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range tasks {
		t := &tasks[i]
		row := []string{
			t.ID,
			t.ProjectNumber,
			t.BatchInfo,
			t.ProjectOwner,
			t.Source,
			string(t.Priority),
			string(t.Status),
			model.MemberName(members, t.AssigneeID),
			t.StartDate,
			t.DeadlineDate,
			t.CompletionDate,
			fmt.Sprintf("%d/%d", t.CompletedSteps(), len(t.Progress)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write task %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
