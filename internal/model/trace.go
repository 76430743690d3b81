package model

// Step records one pipeline stage or batched call for diagnostics.
// The trace is observability output only, never control flow.
type Step struct {
	Name      string `json:"name"`
	Touched   int    `json:"touched"`
	Succeeded int    `json:"succeeded"`
	Err       string `json:"err,omitempty"`
}

// Trace is the ordered list of steps one refresh cycle executed.
type Trace struct {
	Steps []Step `json:"steps"`
}

// Add appends a completed step.
func (t *Trace) Add(name string, touched, succeeded int) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, Step{Name: name, Touched: touched, Succeeded: succeeded})
}

// AddError appends a failed step.
func (t *Trace) AddError(name string, err error) {
	if t == nil {
		return
	}
	step := Step{Name: name}
	if err != nil {
		step.Err = err.Error()
	}
	t.Steps = append(t.Steps, step)
}
