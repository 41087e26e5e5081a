// internal/harness/sink.go
// Package: harness
package harness

import (
	"errors"
)

// Sink receives the suite's progress in execution order. All calls come from the
// goroutine running the suite.
type Sink interface {
	// Begin is called once before the first trial. An error aborts the run.
	Begin(plan Plan) error
	RecordTrial(t Trial) error
	RecordCell(row SummaryRow) error
	// End is called once, also after an interrupted run.
	End(res SuiteResult) error
}

// multiSink fans events out to several sinks in order.
type multiSink []Sink

func (m multiSink) Begin(plan Plan) error {
	_, err := m.begin(plan)
	return err
}

// begin stops at the first failing sink and reports how many had started.
func (m multiSink) begin(plan Plan) (int, error) {
	for i, s := range m {
		if err := s.Begin(plan); err != nil {
			return i, err
		}
	}
	return len(m), nil
}

func (m multiSink) RecordTrial(t Trial) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordTrial(t))
	}
	return errors.Join(errs...)
}

func (m multiSink) RecordCell(row SummaryRow) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordCell(row))
	}
	return errors.Join(errs...)
}

func (m multiSink) End(res SuiteResult) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.End(res))
	}
	return errors.Join(errs...)
}

// NopSink ignores every event. Embed it to implement only some methods.
type NopSink struct{}

func (NopSink) Begin(Plan) error            { return nil }
func (NopSink) RecordTrial(Trial) error     { return nil }
func (NopSink) RecordCell(SummaryRow) error { return nil }
func (NopSink) End(SuiteResult) error       { return nil }
