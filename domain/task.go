package domain

import "sort"

// Task is one planned item of a day agenda.
type Task struct {
	ID         string       `json:"id"`
	ActivityID string       `json:"activity_id"`
	Name       string       `json:"name,omitempty"`
	Date       Date         `json:"date"`
	Status     UpdateStatus `json:"status"`
	Time       *TimeOfDay   `json:"time,omitempty"`
}

// sortKey puts untimed tasks after 23:59.
func (t Task) sortKey() int {
	if t.Time == nil {
		return 24 * 60
	}
	return t.Time.Minutes()
}

func (t *Task) IsDone() bool {
	return t != nil && (t.Status == UpdateCompleted || t.Status == UpdateSkipped)
}

// SortTasks orders tasks by time of day, then by activity id.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ki, kj := tasks[i].sortKey(), tasks[j].sortKey()
		if ki != kj {
			return ki < kj
		}
		return tasks[i].ActivityID < tasks[j].ActivityID
	})
}
