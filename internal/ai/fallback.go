package ai

import "fmt"

// TaskClass selects a preferred model tier for one kind of work.
type TaskClass string

const (
	TaskSummary TaskClass = "summary"
	TaskQA      TaskClass = "qa"
	TaskComplex TaskClass = "complex"
	TaskDefault TaskClass = "default"
)

// modelHierarchy is ordered weakest and cheapest first. Fallback walks it
// top to bottom.
var modelHierarchy = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
}

// ResolveModel maps a task class to its preferred model. Summary, Q&A and
// complex tasks all want the strongest tier; everything else takes the
// cheapest.
func ResolveModel(task TaskClass) string {
	switch task {
	case TaskSummary, TaskQA, TaskComplex:
		return modelHierarchy[len(modelHierarchy)-1]
	default:
		return modelHierarchy[0]
	}
}

// NewTaskGenerator builds the fallback chain for a task: the preferred model
// first, then the remaining hierarchy tiers in order. A nil provider is a
// configuration error, not something to degrade around.
func NewTaskGenerator(p IProvider, task TaskClass, opts GenerateOptions) (IGenerator, error) {
	if p == nil {
		return nil, fmt.Errorf("ai provider is not configured")
	}
	preferred := ResolveModel(task)
	entries := []GeneratorEntry{{Name: preferred, Generator: NewGenerator(p, preferred, opts)}}
	for _, model := range modelHierarchy {
		if model == preferred {
			continue
		}
		entries = append(entries, GeneratorEntry{Name: model, Generator: NewGenerator(p, model, opts)})
	}
	gen := NewGroupGenerator(entries)
	if gen == nil {
		return nil, fmt.Errorf("no generator tiers available")
	}
	return gen, nil
}
