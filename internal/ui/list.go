package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/fanx/internal/tasks"
)

var (
	_ list.Item = stageItem{}
)

// stageItem wraps a [tasks.StageTiming] to implement [list.Item].
type stageItem struct {
	timing tasks.StageTiming
}

func (i stageItem) FilterValue() string { return i.timing.Phase.String() }
func (i stageItem) Title() string       { return i.timing.Phase.Title() }
func (i stageItem) Description() string {
	return fmt.Sprintf("%s • %s", i.timing.Phase, i.timing.Elapsed.Round(time.Millisecond))
}

func stageItems(timings []tasks.StageTiming) []list.Item {
	items := make([]list.Item, len(timings))
	for i, t := range timings {
		items[i] = stageItem{timing: t}
	}
	return items
}
