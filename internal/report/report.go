// Package report drafts narrative chest-radiograph reports for cases using an
// LLM. Drafts are decision support for the owning clinician, never final.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/pleura/internal/cases"
	"github.com/linnemanlabs/pleura/internal/llm/claude"
	"github.com/linnemanlabs/pleura/internal/triage"
)

// DefaultMaxTokens bounds the length of a draft.
const DefaultMaxTokens = 1024

const systemPrompt = `You are assisting a clinician by drafting a concise chest radiograph report.
Use only the information provided. Do not invent findings, measurements or history.
Structure the draft as: Clinical context, Model findings, Impression, Suggested next steps.
Model probabilities are screening outputs, not diagnoses; say so when they drive the impression.
Keep it under 250 words and plain text.`

// Completer is the LLM call the drafter needs.
type Completer interface {
	Complete(ctx context.Context, req claude.Request) (*claude.Completion, error)
}

// Drafter implements cases.ReportDrafter.
type Drafter struct {
	llm       Completer
	maxTokens int
	logger    log.Logger
	hooks     Hooks
}

// New returns a Drafter. maxTokens <= 0 selects DefaultMaxTokens.
func New(llm Completer, maxTokens int, logger log.Logger, hooks Hooks) *Drafter {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Drafter{llm: llm, maxTokens: maxTokens, logger: logger, hooks: hooks}
}

// Draft writes a report for c.
func (d *Drafter) Draft(ctx context.Context, c *cases.Case) (string, error) {
	start := time.Now()
	out, err := d.llm.Complete(ctx, claude.Request{
		System:    systemPrompt,
		Prompt:    Prompt(c),
		MaxTokens: d.maxTokens,
	})
	d.observe(out, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("draft report: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", errors.New("draft report: empty completion")
	}

	d.logger.Info(ctx, "report drafted",
		"case_id", c.ID,
		"model", out.Model,
		"stop_reason", out.StopReason,
		"tokens_in", out.InputTokens,
		"tokens_out", out.OutputTokens,
		"duration", time.Since(start).Seconds(),
	)
	return text, nil
}

func (d *Drafter) observe(out *claude.Completion, dur time.Duration, err error) {
	if d.hooks.OnLLMCall == nil {
		return
	}
	var in, outTokens int64
	if out != nil {
		in, outTokens = int64(out.InputTokens), int64(out.OutputTokens)
	}
	d.hooks.OnLLMCall(in, outTokens, dur.Seconds(), err)
}

// Prompt renders the case as the user message. Patient name is left out.
func Prompt(c *cases.Case) string {
	var b strings.Builder
	p := c.Patient

	fmt.Fprintf(&b, "Case %s\n\n", c.ID)

	b.WriteString("Patient\n")
	if p.Age > 0 {
		fmt.Fprintf(&b, "- Age: %g\n", p.Age)
	}
	writeIf(&b, "Sex", p.Sex)
	writeIf(&b, "Chief complaint", p.ChiefComplaint)
	if p.Smoker {
		b.WriteString("- Smoker\n")
	}
	if p.Immunocompromised {
		b.WriteString("- Immunocompromised\n")
	}

	var vitals []string
	for _, v := range []struct {
		name string
		v    cases.Vital
	}{
		{"SpO2", p.Vitals.SpO2},
		{"BP", p.Vitals.BP},
		{"RR", p.Vitals.RR},
		{"HR", p.Vitals.HR},
		{"Temperature", p.Vitals.Temperature},
	} {
		if v.v.Value == "" {
			continue
		}
		s := fmt.Sprintf("%s %s", v.name, v.v.Value)
		if v.v.IndividualBaseline {
			s += " (patient baseline)"
		}
		vitals = append(vitals, s)
	}
	writeList(&b, "Vitals", vitals)

	var symptoms []string
	for _, s := range []struct {
		name string
		v    cases.Reading
	}{
		{"breathlessness", p.Symptoms.Breathlessness},
		{"dyspnea on exertion", p.Symptoms.DyspneaOnExertion},
		{"cough", p.Symptoms.Cough},
		{"chest pain", p.Symptoms.ChestPain},
		{"sputum", p.Symptoms.Sputum},
		{"hemoptysis", p.Symptoms.Hemoptysis},
	} {
		if s.v != "" {
			symptoms = append(symptoms, fmt.Sprintf("%s %s", s.name, s.v))
		}
	}
	writeList(&b, "Symptoms", symptoms)

	var exam []string
	for _, f := range []struct {
		name string
		v    cases.Finding
	}{
		{"breath sounds", p.ExamFindings.BreathSounds},
		{"crackles", p.ExamFindings.Crackles},
		{"bronchial breath sounds", p.ExamFindings.BronchialBreathSounds},
		{"tracheal deviation", p.ExamFindings.TrachealDeviation},
	} {
		if f.v != "" {
			exam = append(exam, fmt.Sprintf("%s %s", f.name, f.v))
		}
	}
	writeList(&b, "Examination", exam)

	b.WriteString("\nModel findings\n")
	if c.Predictions == nil {
		b.WriteString("- Inference pending; no probabilities available.\n")
	} else {
		for _, cond := range triage.Conditions {
			fmt.Fprintf(&b, "- %s: %.2f", cond, c.Predictions.Get(cond))
			if c.Triage != nil {
				fmt.Fprintf(&b, " (%s)", c.Triage.Flags.Get(cond))
			}
			b.WriteString("\n")
		}
	}
	if c.Triage != nil {
		fmt.Fprintf(&b, "- Triage level: %s. %s\n", c.Triage.Level, c.Triage.Reason)
	}

	return b.String()
}

func writeIf(b *strings.Builder, label, v string) {
	if v != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, v)
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, ", "))
}
