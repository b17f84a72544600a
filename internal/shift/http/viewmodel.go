package shifthttp

import (
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
	"github.com/odyssey-erp/odyssey-pos/internal/workflow"
)

// SessionView is the JSON form of a workflow session.
type SessionView struct {
	ID             string          `json:"id"`
	Step           workflow.Step   `json:"step"`
	Shift          *shift.Shift    `json:"shift,omitempty"`
	Cash           string          `json:"cash,omitempty"`
	Card           string          `json:"card,omitempty"`
	Variance       *shift.Variance `json:"variance,omitempty"`
	NotesRequired  bool            `json:"notes_required"`
	Submitting     bool            `json:"submitting"`
	ReceiptEmitted bool            `json:"receipt_emitted"`
	CanExit        bool            `json:"can_exit"`
	Error          string          `json:"error,omitempty"`
}

func snapshot(id string, wf *workflow.Workflow) SessionView {
	view := SessionView{ID: id, Submitting: wf.Submitting(), CanExit: true}
	st := wf.State()
	view.Step = st.Step()
	switch s := st.(type) {
	case workflow.SelectState:
		view.Error = errText(s.Err)
	case workflow.CountState:
		view.Shift = &s.Shift
		view.Cash, view.Card = s.Cash, s.Card
		view.Error = errText(s.Err)
	case workflow.ReviewState:
		view.Shift = &s.Shift
		view.Cash, view.Card = s.Cash, s.Card
		view.Variance = &s.Variance
		view.NotesRequired = s.NotesRequired()
		view.Error = errText(s.Err)
	case workflow.FinalizeState:
		view.Shift = &s.Shift
		view.ReceiptEmitted = s.ReceiptEmitted
		view.CanExit = s.ReceiptEmitted
		view.Error = errText(s.ReceiptErr)
	}
	if view.Submitting {
		view.CanExit = false
	}
	return view
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
