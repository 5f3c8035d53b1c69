// Package input collects missing placeholder answers from the terminal.
//
// Prompts go through the Prompter interface so the collection logic can be
// tested without a terminal. Survey is the interactive implementation.
package input

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/simonhull/firebird-suite/hatch/internal/placeholder"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("prompt aborted")

// Question is one text prompt.
type Question struct {
	Message   string
	Default   string
	Help      string
	Validator func(string) error
}

// Prompter asks questions.
type Prompter interface {
	Input(ctx context.Context, q Question) (string, error)
	Confirm(ctx context.Context, message string, def bool) (bool, error)
}

// Survey prompts on the terminal.
type Survey struct{}

// Input asks q and returns the answer.
func (Survey) Input(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{
		Message: q.Message,
		Default: q.Default,
		Help:    q.Help,
	}
	var opts []survey.AskOpt
	if q.Validator != nil {
		opts = append(opts, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			return q.Validator(s)
		}))
	}
	if err := survey.AskOne(prompt, &out, opts...); err != nil {
		return "", translate(err)
	}
	return out, nil
}

// Confirm asks a yes/no question.
func (Survey) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out); err != nil {
		return false, translate(err)
	}
	return out, nil
}

func translate(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

// Collect prompts for declared placeholders that have no answer yet and
// returns the answers extended with what the user typed. With all unset
// only placeholders that would otherwise be missing are asked; with all
// set every unanswered placeholder is offered with its default.
//
// Empty input for a placeholder with a default is not recorded, so the
// resolver still applies the default.
func Collect(ctx context.Context, p Prompter, declared []variables.Placeholder, answers map[string]string, all bool) (map[string]string, error) {
	out := make(map[string]string, len(answers)+len(declared))
	for k, v := range answers {
		out[k] = v
	}

	for _, ph := range declared {
		if _, ok := out[ph.Name]; ok {
			continue
		}
		if !all && ph.HasDefault() {
			continue
		}

		q := Question{
			Message:   message(ph),
			Default:   suggest(ph.Default, out),
			Help:      ph.Description,
			Validator: validator(ph),
		}
		answer, err := p.Input(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("asking for %s: %w", ph.Name, err)
		}
		if answer != "" || !ph.HasDefault() {
			out[ph.Name] = answer
		}
	}
	return out, nil
}

func message(ph variables.Placeholder) string {
	if ph.Description != "" {
		return fmt.Sprintf("%s (%s)", ph.Description, ph.Name)
	}
	return ph.Name
}

// suggest expands a default against the answers so far. Defaults that
// reference unanswered placeholders are left for the resolver.
func suggest(def string, answers map[string]string) string {
	out, err := placeholder.Replace(def, func(name string) (string, bool) {
		v, ok := answers[name]
		return v, ok
	})
	if err != nil {
		return ""
	}
	return out
}

func validator(ph variables.Placeholder) func(string) error {
	return func(value string) error {
		if value == "" {
			if ph.Required && !ph.HasDefault() {
				return fmt.Errorf("%s is required", ph.Name)
			}
			return nil
		}
		return ph.Validate(value)
	}
}
