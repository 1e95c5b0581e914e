package printer

import "github.com/smart-tinker/ncrew/internal/model"

// Printer knows how to print task and run information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.Task) error
	PrintTaskStatus(task model.Task) error
	PrintRunList(runs []model.Run) error
	PrintModelList(models []model.ModelRef) error
	PrintMessage(msg string) error
}
