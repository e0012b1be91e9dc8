// Package tui is a terminal rendition of the production form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dessertcast/form"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E3A8A")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#1F2937"))
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
)

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#B91C1C")).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#FECACA")).
	Padding(0, 2)

var resultStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#15803D")).
	Bold(true).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#BBF7D0")).
	Padding(0, 2)

// Render draws a session snapshot: the twelve figures, then the error or
// forecast banner.
func Render(st form.State) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("🍦 Frozen Dessert Production Predictor"))
	b.WriteString("\n\n")

	for i, month := range form.MonthNames {
		value := valueStyle.Render(st.Inputs[i])
		if st.Invalid(i) {
			value = invalidStyle.Render(st.Inputs[i] + " ✗")
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", month)), value))
	}
	b.WriteString("\n")

	if st.Error != "" {
		b.WriteString(errorStyle.Render(st.Error))
		b.WriteString("\n")
	}
	if banner := st.Banner(); banner != "" {
		b.WriteString(resultStyle.Render("📈 Next Month’s Forecast: " + banner))
		b.WriteString("\n")
	}
	return b.String()
}

// editForm builds the huh form for one round of edits. Fields carry no
// validation; checking happens on submit, as in the browser form.
func editForm(values *[form.SlotCount]string) *huh.Form {
	fields := make([]huh.Field, 0, form.SlotCount)
	for i := range values {
		fields = append(fields, huh.NewInput().
			Title(form.MonthNames[i]).
			Placeholder("millions of gallons").
			Value(&values[i]))
	}
	return huh.NewForm(
		huh.NewGroup(fields[:6]...).Title("Production, January to June"),
		huh.NewGroup(fields[6:]...).Title("Production, July to December"),
	)
}

// apply copies edited values into the session. Only slots whose text
// changed are set, so untouched slots stay untouched.
func apply(sess *form.Session, values [form.SlotCount]string) error {
	current := sess.Snapshot().Inputs
	for i, v := range values {
		if v == current[i] {
			continue
		}
		if err := sess.SetSlot(i, v); err != nil {
			return err
		}
	}
	return nil
}

// Run loops edit → submit → render until the user declines another round
// or aborts a form.
func Run(ctx context.Context, sess *form.Session, predictor form.Predictor, out io.Writer) error {
	for {
		values := [form.SlotCount]string(sess.Snapshot().Inputs)
		if err := editForm(&values).RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("edit form: %w", err)
		}
		if err := apply(sess, values); err != nil {
			return err
		}

		fmt.Fprintln(out, labelStyle.Render("Predicting..."))
		// Validation and request failures are reported through the banner.
		_ = sess.Submit(ctx, predictor)
		fmt.Fprintln(out, Render(sess.Snapshot()))

		again := true
		confirm := huh.NewConfirm().
			Title("Predict again?").
			Affirmative("Yes").
			Negative("No").
			Value(&again)
		if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("confirm: %w", err)
		}
		if !again {
			return nil
		}
	}
}
